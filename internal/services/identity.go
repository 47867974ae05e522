// Firebase Authentication (Identity Toolkit REST) implementation of [Identity]
//
// Endpoints based on https://firebase.google.com/docs/reference/rest/auth
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

const (
	identityBaseURL = "https://identitytoolkit.googleapis.com/v1"
	secureTokenURL  = "https://securetoken.googleapis.com/v1/token"

	// GoogleProviderID is the federated provider used for browser sign-in.
	GoogleProviderID = "google.com"
	passwordProvider = "password"
)

// Machine-readable identity error codes surfaced to the UI.
const (
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeTooManyRequests    = "auth/too-many-requests"
	CodePopupClosed        = "auth/popup-closed-by-user"
	CodeEmailInUse         = "auth/email-already-in-use"
	CodeWeakPassword       = "auth/weak-password"
	CodeUserNotFound       = "auth/user-not-found"
	CodeRequiresRecent     = "auth/requires-recent-login"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeUserDisabled       = "auth/user-disabled"
	CodeTokenExpired       = "auth/user-token-expired"
	CodeOperationForbidden = "auth/operation-not-allowed"
	CodeInternal           = "auth/internal-error"
)

// AuthError is an identity-provider failure with a machine-readable code.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets callers match every AuthError with [shared.ErrAuthFailed].
func (e *AuthError) Unwrap() error {
	return shared.ErrAuthFailed
}

// AuthCode returns the code of an [AuthError] in err's chain, or "".
func AuthCode(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// AuthMessage maps err to the text shown to the user.
func AuthMessage(err error) string {
	if err == nil {
		return ""
	}
	switch AuthCode(err) {
	case CodeEmailInUse:
		return "Email already registered!"
	case CodeWeakPassword:
		return "Password should be at least 6 characters!"
	case CodeUserNotFound:
		return "User not found!"
	case CodeInvalidCredential:
		return "Incorrect email or password!"
	case CodeTooManyRequests:
		return "Too many attempts. Please try again later."
	case CodePopupClosed:
		return "Sign-in was cancelled."
	case CodeRequiresRecent:
		return "Please sign in again to make this change."
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeUserDisabled:
		return "This account has been disabled."
	case CodeTokenExpired:
		return "Your session has expired. Please sign in again."
	}
	return err.Error()
}

// providerErrorCodes maps Identity Toolkit error messages to auth codes.
var providerErrorCodes = map[string]string{
	"EMAIL_EXISTS":                   CodeEmailInUse,
	"WEAK_PASSWORD":                  CodeWeakPassword,
	"EMAIL_NOT_FOUND":                CodeUserNotFound,
	"USER_NOT_FOUND":                 CodeUserNotFound,
	"INVALID_PASSWORD":               CodeInvalidCredential,
	"INVALID_LOGIN_CREDENTIALS":      CodeInvalidCredential,
	"INVALID_IDP_RESPONSE":           CodeInvalidCredential,
	"INVALID_REFRESH_TOKEN":          CodeInvalidCredential,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    CodeTooManyRequests,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": CodeRequiresRecent,
	"INVALID_EMAIL":                  CodeInvalidEmail,
	"USER_DISABLED":                  CodeUserDisabled,
	"TOKEN_EXPIRED":                  CodeTokenExpired,
	"INVALID_ID_TOKEN":               CodeTokenExpired,
	"OPERATION_NOT_ALLOWED":          CodeOperationForbidden,
}

type identityErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// tokenResponse covers every Identity Toolkit response that issues tokens.
type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// FirebaseIdentity talks to Firebase Authentication over its REST API.
type FirebaseIdentity struct {
	apiKey     string
	baseURL    string
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
}

// NewFirebaseIdentity creates an identity client from cfg.
func NewFirebaseIdentity(cfg shared.FirebaseConfig, client *http.Client) (*FirebaseIdentity, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: firebase api_key", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.IdentityURL, "/")
	if baseURL == "" {
		baseURL = identityBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = secureTokenURL
	}
	return &FirebaseIdentity{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		tokenURL:   tokenURL,
		httpClient: client,
		now:        time.Now,
	}, nil
}

func (f *FirebaseIdentity) Name() string {
	return "Firebase"
}

// SignUp creates an e-mail/password account.
func (f *FirebaseIdentity) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	var out tokenResponse
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := f.post(ctx, "accounts:signUp", body, &out); err != nil {
		return nil, err
	}
	out.ProviderID = passwordProvider
	return f.session(out), nil
}

// SignIn signs in with e-mail and password.
func (f *FirebaseIdentity) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var out tokenResponse
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := f.post(ctx, "accounts:signInWithPassword", body, &out); err != nil {
		return nil, err
	}
	out.ProviderID = passwordProvider
	return f.session(out), nil
}

// SignInWithIdP exchanges a federated provider id token for a Firebase session.
func (f *FirebaseIdentity) SignInWithIdP(ctx context.Context, providerID, idToken, requestURI string) (*models.Session, error) {
	post := url.Values{}
	post.Set("id_token", idToken)
	post.Set("providerId", providerID)
	body := map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}

	var out tokenResponse
	if err := f.post(ctx, "accounts:signInWithIdp", body, &out); err != nil {
		return nil, err
	}
	if out.ProviderID == "" {
		out.ProviderID = providerID
	}
	return f.session(out), nil
}

// UpdateProfile sets the display name of the signed-in account.
func (f *FirebaseIdentity) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	body := map[string]any{"idToken": idToken, "displayName": displayName, "returnSecureToken": false}
	return f.post(ctx, "accounts:update", body, nil)
}

// UpdatePassword changes the password and returns the re-issued session tokens.
func (f *FirebaseIdentity) UpdatePassword(ctx context.Context, idToken, password string) (*models.Session, error) {
	var out tokenResponse
	body := map[string]any{"idToken": idToken, "password": password, "returnSecureToken": true}
	if err := f.post(ctx, "accounts:update", body, &out); err != nil {
		return nil, err
	}
	out.ProviderID = passwordProvider
	return f.session(out), nil
}

// Refresh exchanges a refresh token for a new id token. Only the UID of the
// returned identity is populated.
func (f *FirebaseIdentity) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL+"?key="+url.QueryEscape(f.apiKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := f.do(req, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return &models.Session{
		Identity:     models.Identity{UID: out.UserID},
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    f.expiry(out.ExpiresIn),
	}, nil
}

func (f *FirebaseIdentity) session(r tokenResponse) *models.Session {
	return &models.Session{
		Identity: models.Identity{
			UID:         r.LocalID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			ProviderID:  r.ProviderID,
		},
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    f.expiry(r.ExpiresIn),
	}
}

func (f *FirebaseIdentity) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return f.now().Add(time.Duration(secs) * time.Second).UTC()
}

func (f *FirebaseIdentity) post(ctx context.Context, method string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s?key=%s", f.baseURL, method, url.QueryEscape(f.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.do(req, result)
}

func (f *FirebaseIdentity) do(req *http.Request, result any) error {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return identityError(resp.StatusCode, body)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// identityError turns an error response into an [AuthError]. Messages look like
// "WEAK_PASSWORD : Password should be at least 6 characters".
func identityError(status int, body []byte) error {
	var eb identityErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error.Message == "" {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, status)
	}

	reason, detail, _ := strings.Cut(eb.Error.Message, ":")
	reason = strings.TrimSpace(reason)
	code, ok := providerErrorCodes[reason]
	if !ok {
		code = CodeInternal
	}
	msg := strings.TrimSpace(detail)
	if msg == "" {
		msg = reason
	}
	return &AuthError{Code: code, Message: msg}
}
