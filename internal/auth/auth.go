package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "english_lab_go_backend/internal/errors"
	"english_lab_go_backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const userKey = "user"

// UserProvisioner records the identity behind a verified token.
type UserProvisioner interface {
	CreateOrUpdateUser(ctx context.Context, authID, email, name string) (*models.User, error)
}

// TokenVerifier checks bearer tokens. A shared secret accepts HS256 tokens;
// a JWKS URL accepts RS256 tokens signed by the identity provider.
type TokenVerifier struct {
	secret  []byte
	jwksURL string
	client  *http.Client

	mu       sync.Mutex
	certs    map[string]string
	fetched  time.Time
	cacheTTL time.Duration
}

func NewTokenVerifier(secret, jwksURL string) *TokenVerifier {
	return &TokenVerifier{
		secret:   []byte(secret),
		jwksURL:  jwksURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: time.Hour,
	}
}

func SetupRoutes(r *gin.Engine, verifier *TokenVerifier, users UserProvisioner) {
	auth := r.Group("/auth")
	{
		auth.GET("/user", AuthMiddleware(verifier, users), getUser)
	}
}

// AuthMiddleware rejects requests without a valid token. Websocket upgrades
// carry the token in the "token" query parameter.
func AuthMiddleware(verifier *TokenVerifier, users UserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := zerolog.Ctx(c.Request.Context())

		token := requestToken(c)
		if token == "" {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		user, err := authenticate(c.Request.Context(), verifier, users, token)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected token")
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the user when a valid token is present and
// lets anonymous requests through.
func OptionalAuthMiddleware(verifier *TokenVerifier, users UserProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := requestToken(c); token != "" {
			if user, err := authenticate(c.Request.Context(), verifier, users, token); err == nil {
				c.Set(userKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user set by the auth middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func requestToken(c *gin.Context) string {
	if websocket.IsWebSocketUpgrade(c.Request) {
		return c.Query("token")
	}
	bearerToken := strings.Split(c.GetHeader("Authorization"), " ")
	if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
		return ""
	}
	return bearerToken[1]
}

func authenticate(ctx context.Context, verifier *TokenVerifier, users UserProvisioner, token string) (*models.User, error) {
	claims, err := verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	authID, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	user, err := users.CreateOrUpdateUser(ctx, authID, email, name)
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	return user, nil
}

func getUser(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// Verify parses tokenString and returns its claims when the signature and
// standard time claims check out.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(v.secret) == 0 {
				return nil, errors.New("shared secret not configured")
			}
			return v.secret, nil
		case *jwt.SigningMethodRSA:
			if v.jwksURL == "" {
				return nil, errors.New("jwks url not configured")
			}
			cert, err := v.getPemCert(ctx, token)
			if err != nil {
				return nil, err
			}
			return jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (v *TokenVerifier) getPemCert(ctx context.Context, token *jwt.Token) (string, error) {
	kid, _ := token.Header["kid"].(string)

	v.mu.Lock()
	defer v.mu.Unlock()

	if cert, ok := v.certs[kid]; ok && time.Since(v.fetched) < v.cacheTTL {
		return cert, nil
	}
	if err := v.fetchCerts(ctx); err != nil {
		return "", err
	}
	cert, ok := v.certs[kid]
	if !ok {
		return "", errors.New("unable to find appropriate key")
	}
	return cert, nil
}

func (v *TokenVerifier) fetchCerts(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var jwks = struct {
		Keys []struct {
			Kty string   `json:"kty"`
			Kid string   `json:"kid"`
			Use string   `json:"use"`
			X5c []string `json:"x5c"`
		} `json:"keys"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	certs := make(map[string]string, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if len(k.X5c) == 0 {
			continue
		}
		certs[k.Kid] = "-----BEGIN CERTIFICATE-----\n" + k.X5c[0] + "\n-----END CERTIFICATE-----"
	}
	v.certs = certs
	v.fetched = time.Now()
	return nil
}
