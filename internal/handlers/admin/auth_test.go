package admin_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seaprocure/internal/api"
	"seaprocure/internal/auth"
	"seaprocure/internal/database"
	"seaprocure/internal/models"
	"seaprocure/internal/server"
	"seaprocure/internal/testutil"
)

func setup(t *testing.T) (*server.App, http.Handler) {
	t.Helper()
	app := testutil.NewApp(t)
	return app, api.NewRouter(app)
}

func login(t *testing.T, h http.Handler, username, password string) (int, models.LoginResponse) {
	t.Helper()
	w := testutil.Request(t, h, "POST", "/api/v1/auth/login", "",
		models.LoginRequest{Username: username, Password: password})
	if w.Code != http.StatusOK {
		return w.Code, models.LoginResponse{}
	}
	return w.Code, testutil.Decode[models.LoginResponse](t, w).Data
}

func TestLoginSuccess(t *testing.T) {
	app, h := setup(t)

	code, resp := login(t, h, "vendor1", database.DemoPassword)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "vendor1", resp.User.Username)
	assert.Equal(t, models.PortalVendor, resp.User.Portal)
	assert.Equal(t, "admin", resp.User.Role)
	assert.Contains(t, resp.User.Permissions, auth.PermApprovePayments)

	claims, err := app.Tokens.Parse(resp.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "vendor1", claims.Subject)
	assert.Equal(t, models.PortalVendor, claims.Portal)

	refresh, err := app.Tokens.Parse(resp.RefreshToken, auth.TokenTypeRefresh)
	require.NoError(t, err)
	var count int
	app.DB.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ? AND revoked = 0", refresh.SessionID).Scan(&count)
	assert.Equal(t, 1, count)

	w := testutil.Request(t, h, "GET", "/api/v1/vendor/rfq", resp.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginFailures(t *testing.T) {
	app, h := setup(t)

	code, _ := login(t, h, "nobody", database.DemoPassword)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = login(t, h, "vendor1", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, code)

	var attempts int
	app.DB.QueryRow("SELECT failed_login_attempts FROM users WHERE username = 'vendor1'").Scan(&attempts)
	assert.Equal(t, 1, attempts)

	w := testutil.Request(t, h, "POST", "/api/v1/auth/login", "", models.LoginRequest{Username: "vendor1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := app.DB.Exec("UPDATE users SET active = 0 WHERE username = 'customer1'")
	require.NoError(t, err)
	code, _ = login(t, h, "customer1", database.DemoPassword)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestLoginLockout(t *testing.T) {
	app, h := setup(t)
	app.Limiter.LoginLimit = 100

	for i := 0; i < auth.MaxFailedLoginAttempts; i++ {
		code, _ := login(t, h, "tech1", "not-the-password")
		require.Equal(t, http.StatusUnauthorized, code)
	}
	code, _ := login(t, h, "tech1", database.DemoPassword)
	assert.Equal(t, http.StatusForbidden, code, "locked accounts reject the right password too")

	require.NoError(t, auth.ResetFailedLogins(app.DB, "tech1"))
	code, _ = login(t, h, "tech1", database.DemoPassword)
	assert.Equal(t, http.StatusOK, code)
}

func TestLoginRateLimit(t *testing.T) {
	app, h := setup(t)
	app.Limiter.LoginLimit = 2

	for i := 0; i < 2; i++ {
		code, _ := login(t, h, "vendor1", database.DemoPassword)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := login(t, h, "vendor1", database.DemoPassword)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestRefreshAndLogout(t *testing.T) {
	app, h := setup(t)
	_, resp := login(t, h, "customer1", database.DemoPassword)

	w := testutil.Request(t, h, "POST", "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	access := testutil.Decode[models.RefreshResponse](t, w).Data.AccessToken
	claims, err := app.Tokens.Parse(access, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, models.PortalCustomer, claims.Portal)

	w = testutil.Request(t, h, "POST", "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: resp.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access tokens cannot refresh")

	w = testutil.Request(t, h, "POST", "/api/v1/auth/logout", "", models.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.Request(t, h, "POST", "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked session")

	w = testutil.Request(t, h, "POST", "/api/v1/auth/logout", "", models.RefreshRequest{RefreshToken: "garbage"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_PicksUpRoleChange(t *testing.T) {
	app, h := setup(t)
	_, resp := login(t, h, "vendor1", database.DemoPassword)

	_, err := app.DB.Exec("UPDATE users SET role = 'viewer' WHERE username = 'vendor1'")
	require.NoError(t, err)

	w := testutil.Request(t, h, "POST", "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	access := testutil.Decode[models.RefreshResponse](t, w).Data.AccessToken

	w = testutil.Request(t, h, "GET", "/api/v1/vendor/rfq", access, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = testutil.Request(t, h, "POST", "/api/v1/vendor/quotation", access, models.QuotationRequest{RFQID: "RFQ-1001"})
	assert.Equal(t, http.StatusForbidden, w.Code, "viewers cannot submit quotations")
}
