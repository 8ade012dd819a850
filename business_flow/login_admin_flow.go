package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/amirphl/page-pilot/app/dto"
	"github.com/amirphl/page-pilot/app/services"
	"github.com/amirphl/page-pilot/repository"
	"github.com/amirphl/page-pilot/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow represents the admin authentication flow used by handlers
type AdminAuthFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

// AdminAuthFlowImpl verifies admin credentials and issues access tokens
type AdminAuthFlowImpl struct {
	adminRepo    repository.AdminRepository
	tokenService services.TokenService
	logger       *log.Logger
	now          func() time.Time
}

func NewAdminAuthFlow(adminRepo repository.AdminRepository, tokenService services.TokenService, logger *log.Logger) AdminAuthFlow {
	if logger == nil {
		logger = log.New(log.Writer(), "auth ", log.LstdFlags|log.LUTC)
	}
	return &AdminAuthFlowImpl{
		adminRepo:    adminRepo,
		tokenService: tokenService,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	if req == nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, NewBusinessError("ADMIN_LOGIN_VALIDATION_FAILED", "Admin login validation failed", ErrInvalidCredentials)
	}

	admin, err := af.adminRepo.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
	}
	if admin == nil {
		return nil, NewBusinessError("ADMIN_NOT_FOUND", "Admin not found", ErrAdminNotFound)
	}
	if !utils.IsTrue(admin.IsActive) {
		return nil, NewBusinessError("ADMIN_INACTIVE", "Admin account is inactive", ErrAdminInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		if metadata != nil {
			af.logger.Printf("auth: rejected password for admin=%s ip=%s request_id=%s", admin.Username, metadata.IPAddress, metadata.RequestID)
		}
		return nil, NewBusinessError("ADMIN_INCORRECT_PASSWORD", "Incorrect password", ErrIncorrectPassword)
	}

	accessToken, expiresAt, err := af.tokenService.GenerateAdminToken(admin.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	now := af.now()
	if err := af.adminRepo.TouchLastLogin(ctx, admin.ID, now); err != nil {
		af.logger.Printf("auth: update last login failed for id=%d: %v", admin.ID, err)
	} else {
		admin.LastLoginAt = &now
	}

	return &dto.AdminLoginResponse{
		Admin:   ToAdminDTOModel(*admin),
		Session: ToAdminSessionDTO(accessToken, expiresAt, now),
	}, nil
}

// Logout revokes the presented access token
func (af *AdminAuthFlowImpl) Logout(ctx context.Context, accessToken string) error {
	if err := af.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("TOKEN_REVOCATION_FAILED", "Failed to revoke token", err)
	}
	return nil
}
