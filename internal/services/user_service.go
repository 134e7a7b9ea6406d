package services

import (
	"context"
	"errors"
	"time"

	"barqpix-backend/internal/models"
	"barqpix-backend/internal/store"
	"barqpix-backend/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	store    store.Store
	validate *validator.Validate
}

func NewUserService(s store.Store) *UserService {
	return &UserService{store: s, validate: validator.New()}
}

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, mapStoreErr(err)
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := GenerateJWT(user.ID, user.DisplayName)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateRefreshToken(user.ID, user.DisplayName)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
	}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return user, nil
}

func GenerateJWT(userID, displayName string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":      userID,
		"display_name": displayName,
		"exp":          time.Now().Add(time.Hour * 72).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_SECRET", "secret")))
}

func GenerateRefreshToken(userID, displayName string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":      userID,
		"display_name": displayName,
		"refresh":      true,
		"exp":          time.Now().Add(time.Hour * 24 * 30).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(utils.GetEnv("JWT_REFRESH_SECRET", utils.GetEnv("JWT_SECRET", "secret"))))
}

func ValidateToken(tokenString string) (jwt.MapClaims, error) {
	return validateWithSecret(tokenString, utils.GetEnv("JWT_SECRET", "secret"))
}

func ValidateRefreshToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := validateWithSecret(tokenString, utils.GetEnv("JWT_REFRESH_SECRET", utils.GetEnv("JWT_SECRET", "secret")))
	if err != nil {
		return nil, err
	}
	if refresh, ok := claims["refresh"].(bool); !ok || !refresh {
		return nil, errors.New("not a refresh token")
	}
	return claims, nil
}

func validateWithSecret(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
