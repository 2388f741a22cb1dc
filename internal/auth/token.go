package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carry the whole capability snapshot so requests never hit the
// store to authorize.
type Claims struct {
	UserID             int64  `json:"uid"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	RoleID             int64  `json:"rid"`
	RoleName           string `json:"role"`
	CanSubmit          bool   `json:"submit"`
	CanApprove         bool   `json:"approve"`
	CanProcess         bool   `json:"process"`
	IsAdmin            bool   `json:"admin"`
	MustChangePassword bool   `json:"mcp"`
	jwt.RegisteredClaims
}

type TokenGeneratorAPI interface {
	Generate(s *Session) (token string, expiresAt time.Time, err error)
	Validate(token string) (*Session, error)
}

type JWTTokenGenerator struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = internal.DefaultSessionTTL
	}
	return &JWTTokenGenerator{Secret: []byte(secret), TTL: ttl, now: time.Now}
}

func (j *JWTTokenGenerator) Generate(s *Session) (string, time.Time, error) {
	issuedAt := s.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = j.now()
	}
	expiresAt := issuedAt.Add(j.TTL)

	claims := &Claims{
		UserID:             s.UserID,
		Email:              s.Email,
		Name:               s.Name,
		RoleID:             s.RoleID,
		RoleName:           s.RoleName,
		CanSubmit:          s.CanSubmit,
		CanApprove:         s.CanApprove,
		CanProcess:         s.CanProcess,
		IsAdmin:            s.IsAdmin,
		MustChangePassword: s.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(s.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (j *JWTTokenGenerator) Validate(tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, internal.ErrInvalidToken
	}

	s := &Session{
		UserID:             claims.UserID,
		Email:              claims.Email,
		Name:               claims.Name,
		RoleID:             claims.RoleID,
		RoleName:           claims.RoleName,
		MustChangePassword: claims.MustChangePassword,
		Capabilities: Capabilities{
			CanSubmit:  claims.CanSubmit,
			CanApprove: claims.CanApprove,
			CanProcess: claims.CanProcess,
			IsAdmin:    claims.IsAdmin,
		},
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}
