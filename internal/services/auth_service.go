package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/models"
	"golang.org/x/sync/errgroup"
)

type AuthService struct {
	gw         *gateway.Gateway
	hasher     *PasswordHasher
	tokens     *TokenManager
	collection string
}

func NewAuthService(gw *gateway.Gateway, hasher *PasswordHasher, tokens *TokenManager, collection string) *AuthService {
	return &AuthService{
		gw:         gw,
		hasher:     hasher,
		tokens:     tokens,
		collection: collection,
	}
}

// Register creates the provider identity, then the profile document keyed by
// the provider's id. The two writes are not transactional: if the document
// write fails the identity stays behind and is logged for cleanup.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if err := ValidateRegistration(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	identity, err := s.gw.CreateIdentity(ctx, gateway.NewIdentity{
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		DisplayName: req.Name,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrIdentityConflict) {
			return nil, ErrIdentityExists
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	user := models.User{
		UserID:      identity.ID,
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    hash,
		Preferences: models.DefaultPreferences(),
		Status:      models.StatusActive,
	}
	fields := user.Fields()
	fields[models.FieldCreatedAt] = gateway.ServerTimestamp
	fields[models.FieldUpdatedAt] = gateway.ServerTimestamp

	if err := s.gw.PutDocument(ctx, s.collection, identity.ID, fields); err != nil {
		slog.Error("profile write failed after identity creation",
			"action", "register_orphaned_identity",
			"user_id", identity.ID,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("failed to store user profile: %w", err)
	}

	token, err := s.tokens.Issue(identity.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", identity.ID)
	return &dto.RegisterResponse{
		Message: "User registered successfully",
		UserID:  identity.ID,
		Token:   token,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := ValidateLogin(req); err != nil {
		return nil, err
	}

	identity, err := s.gw.GetIdentityByEmail(ctx, req.Email)
	if err != nil {
		return nil, userLookupError(err, "failed to resolve identity")
	}

	// The document can be missing if the stores diverged after a failed registration.
	doc, err := s.gw.GetDocument(ctx, s.collection, identity.ID)
	if err != nil {
		return nil, userLookupError(err, "failed to load user profile")
	}

	stored, _ := doc.Fields[models.FieldPassword].(string)
	if stored == "" || !s.hasher.Verify(req.Password, stored) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identity.ID)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{Message: "Login successful", Token: token}, nil
}

// GetProfile returns the stored profile document without the password hash.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (map[string]any, error) {
	doc, err := s.gw.GetDocument(ctx, s.collection, userID)
	if err != nil {
		return nil, userLookupError(err, "failed to load user profile")
	}

	profile := doc.Fields
	delete(profile, models.FieldPassword)
	return profile, nil
}

// UpdateProfile patches the provider identity with whichever of email and
// phone changed, then always rewrites name, email and phone on the document.
// Uniqueness is a query-then-check against the document store and can race
// with a concurrent update of another user.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.MessageResponse, error) {
	if err := ValidateUpdate(req); err != nil {
		return nil, err
	}

	var byEmail, byPhone []gateway.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.gw.QueryByField(gctx, s.collection, models.FieldEmail, req.Email)
		byEmail = docs
		return err
	})
	g.Go(func() error {
		docs, err := s.gw.QueryByField(gctx, s.collection, models.FieldPhoneNumber, req.PhoneNumber)
		byPhone = docs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to check for duplicate contacts: %w", err)
	}

	if ownedByOther(byEmail, userID) || ownedByOther(byPhone, userID) {
		return nil, ErrContactInUse
	}

	identity, err := s.gw.GetIdentityByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err, "failed to load identity")
	}

	var update gateway.IdentityUpdate
	if !strings.EqualFold(req.Email, identity.Email) {
		email := req.Email
		update.Email = &email
	}
	if req.PhoneNumber != identity.PhoneNumber {
		phone := req.PhoneNumber
		update.PhoneNumber = &phone
	}

	if !update.IsEmpty() {
		if err := s.gw.UpdateIdentity(ctx, userID, update); err != nil {
			if errors.Is(err, gateway.ErrIdentityConflict) {
				return nil, ErrContactInUse
			}
			return nil, userLookupError(err, "failed to update identity")
		}
	}

	err = s.gw.UpdateDocument(ctx, s.collection, userID, map[string]any{
		models.FieldName:        req.Name,
		models.FieldEmail:       req.Email,
		models.FieldPhoneNumber: req.PhoneNumber,
		models.FieldUpdatedAt:   gateway.ServerTimestamp,
	})
	if err != nil {
		return nil, userLookupError(err, "failed to update user profile")
	}

	return &dto.MessageResponse{Message: "Profile updated successfully"}, nil
}

func ownedByOther(docs []gateway.Document, userID string) bool {
	for _, doc := range docs {
		if doc.ID != userID {
			return true
		}
	}
	return false
}

func userLookupError(err error, msg string) error {
	if errors.Is(err, gateway.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
