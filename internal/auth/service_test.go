package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abduss/driveingest/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testAuthConfig = config.AuthConfig{AccessTokenSecret: "access-secret", Issuer: "godrive"}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestValidateAccessTokenSuccess(t *testing.T) {
	service := NewService(testAuthConfig)
	accountID := uuid.New()

	token := signToken(t, "access-secret", jwt.MapClaims{
		"sub": accountID.String(),
		"iss": "godrive",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	claims, err := service.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken returned error: %v", err)
	}
	if claims.AccountID != accountID {
		t.Fatalf("expected account %s, got %s", accountID, claims.AccountID)
	}
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	service := NewService(testAuthConfig)
	token := signToken(t, "other-secret", jwt.MapClaims{
		"sub": uuid.NewString(),
		"iss": "godrive",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	if _, err := service.ValidateAccessToken(token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateAccessTokenRejectsForeignIssuer(t *testing.T) {
	service := NewService(testAuthConfig)
	token := signToken(t, "access-secret", jwt.MapClaims{
		"sub": uuid.NewString(),
		"iss": "elsewhere",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	if _, err := service.ValidateAccessToken(token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	service := NewService(testAuthConfig)
	token := signToken(t, "access-secret", jwt.MapClaims{
		"sub": uuid.NewString(),
		"iss": "godrive",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	if _, err := service.ValidateAccessToken(token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMiddlewareInjectsAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := NewService(testAuthConfig)
	accountID := uuid.New()

	r := gin.New()
	r.Use(Middleware(service))
	r.GET("/me", func(c *gin.Context) {
		id, ok := RequireAccount(c)
		if !ok || id != accountID {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	token := signToken(t, "access-secret", jwt.MapClaims{
		"sub": accountID.String(),
		"iss": "godrive",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rr.Code)
	}
}

func TestAccountProtectedFileIDs(t *testing.T) {
	avatar, banner := uuid.New(), uuid.New()
	host := "remote.example"
	a := Account{Host: &host, AvatarID: &avatar, BannerID: &banner}

	if !a.IsRemote() || a.IsLocal() {
		t.Fatalf("expected remote account")
	}
	ids := a.ProtectedFileIDs()
	if len(ids) != 2 || ids[0] != avatar || ids[1] != banner {
		t.Fatalf("unexpected protected ids: %v", ids)
	}
	if len((Account{}).ProtectedFileIDs()) != 0 {
		t.Fatalf("expected no protected ids for bare account")
	}
}
