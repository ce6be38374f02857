package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/phillip/event-manager-go/models"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	firebaseJWKSURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	identityToolkitURL   = "https://identitytoolkit.googleapis.com/v1"
)

// Firebase verifies Firebase ID tokens and talks to the Identity Toolkit REST
// API for sign up and sign in.
type Firebase struct {
	verifier *oidc.IDTokenVerifier
	apiKey   string
	baseURL  string
	client   *http.Client
}

type FirebaseOption func(*Firebase)

// WithKeySet replaces the remote Google key set, e.g. with an oidc.StaticKeySet.
func WithKeySet(projectID string, keys oidc.KeySet) FirebaseOption {
	return func(f *Firebase) {
		f.verifier = newFirebaseVerifier(projectID, keys)
	}
}

func WithBaseURL(baseURL string) FirebaseOption {
	return func(f *Firebase) { f.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(f *Firebase) { f.client = c }
}

func NewFirebase(ctx context.Context, projectID, apiKey string, opts ...FirebaseOption) *Firebase {
	f := &Firebase{
		verifier: newFirebaseVerifier(projectID, oidc.NewRemoteKeySet(ctx, firebaseJWKSURL)),
		apiKey:   apiKey,
		baseURL:  identityToolkitURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newFirebaseVerifier(projectID string, keys oidc.KeySet) *oidc.IDTokenVerifier {
	return oidc.NewVerifier(firebaseIssuerPrefix+projectID, keys, &oidc.Config{ClientID: projectID})
}

func (f *Firebase) Verify(ctx context.Context, rawToken string) (models.Principal, error) {
	if strings.TrimSpace(rawToken) == "" {
		return models.Principal{}, ErrMissingToken
	}

	idToken, err := f.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
		Name   string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid := idToken.Subject
	if uid == "" {
		uid = claims.UserID
	}
	if uid == "" {
		return models.Principal{}, ErrInvalidToken
	}
	return models.Principal{UID: uid, Email: claims.Email, DisplayName: claims.Name}, nil
}

type toolkitResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type toolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *Firebase) SignUp(ctx context.Context, email, password, displayName string) (Account, error) {
	var out toolkitResponse
	err := f.call(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return Account{}, err
	}

	name := out.DisplayName
	if name == "" {
		name = displayName
	}
	return Account{UID: out.LocalID, Email: out.Email, DisplayName: name}, nil
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (Session, error) {
	var out toolkitResponse
	err := f.call(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return Session{}, err
	}

	expires, _ := strconv.ParseInt(out.ExpiresIn, 10, 64)
	return Session{IDToken: out.IDToken, RefreshToken: out.RefreshToken, ExpiresIn: expires}, nil
}

func (f *Firebase) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", f.baseURL, method, url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity toolkit %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr toolkitError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return mapToolkitError(method, resp.Status, apiErr.Error.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// mapToolkitError translates Identity Toolkit error codes. Messages can carry
// a suffix such as "WEAK_PASSWORD : Password should be at least 6 characters".
func mapToolkitError(method, status, message string) error {
	code := strings.TrimSpace(strings.SplitN(message, ":", 2)[0])
	switch code {
	case "EMAIL_EXISTS":
		return ErrEmailExists
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return ErrInvalidCredentials
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	}
	if message == "" {
		message = status
	}
	return fmt.Errorf("identity toolkit %s: %s", method, message)
}
