package authgin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	authgin "github.com/oradesk/bridgekit/adapters/gin"
	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/core"
	jwtkit "github.com/oradesk/bridgekit/jwt"
	memorylimiter "github.com/oradesk/bridgekit/ratelimit/memory"
	memorystore "github.com/oradesk/bridgekit/storage/memory"
	bridgetesting "github.com/oradesk/bridgekit/testing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testLicenseKey = "ORA-8F2K-QJ4M-W7XP"
	testDeviceID   = "11111111-1111-1111-1111-111111111111"
)

func newAPI(t *testing.T, sessions core.SessionVerifier, rl ginutil.RateLimiter) (*gin.Engine, *memorystore.Store) {
	t.Helper()
	store := memorystore.New()
	store.PutPlan(core.Plan{ID: "plan-1", Name: "Pro", MaxDevices: 2})
	store.PutLicense(testLicenseKey, core.License{
		ID: "lic-1", UserID: "user-1", PlanID: "plan-1", Status: core.StatusActive,
	})
	store.PutWallet(core.TokenWallet{UserID: "user-1", TokenBalance: 250})

	svc, err := core.NewService(core.Config{Store: store, Sessions: sessions})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	r := gin.New()
	authgin.RegisterBridgeAPI(r, svc, rl)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: bad JSON body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, out
}

func licenseHeaders() map[string]string {
	return map[string]string{
		"X-License-Key": testLicenseKey,
		"X-Device-ID":   testDeviceID,
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	w, body := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: code=%d body=%v", w.Code, body)
	}
}

func TestValidate_NoCredential(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	w, body := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %v", w.Code, body)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "X-License-Key") {
		t.Fatalf("error should hint the accepted schemes, got %q", msg)
	}
}

func TestValidate_MissingDeviceID(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", map[string]string{
		"X-License-Key": testLicenseKey,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestValidate_UnknownLicenseKey(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", map[string]string{
		"X-License-Key": "ORA-NOPE-NOPE-NOPE",
		"X-Device-ID":   testDeviceID,
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestValidate_HappyPath(t *testing.T) {
	r, store := newAPI(t, nil, nil)
	w, body := doJSON(t, r, http.MethodPost, "/bridge/license/validate",
		`{"device_name":"Studio Mac","platform":"darwin","app_version":"1.4.0"}`,
		licenseHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, body)
	}
	if body["valid"] != true || body["license_status"] != core.StatusActive {
		t.Fatalf("unexpected verdict: %v", body)
	}
	dev, _ := body["device"].(map[string]any)
	if dev["status"] != core.DeviceNewlyRegistered {
		t.Fatalf("unexpected device block: %v", dev)
	}
	wallet, _ := body["wallet"].(map[string]any)
	if wallet["token_balance"] != float64(250) {
		t.Fatalf("unexpected wallet block: %v", wallet)
	}
	if _, err := time.Parse(time.RFC3339, body["server_time"].(string)); err != nil {
		t.Fatalf("server_time not RFC3339: %v", body["server_time"])
	}
	a, ok := store.GetActivation("lic-1", testDeviceID)
	if !ok || a.DeviceName != "Studio Mac" {
		t.Fatalf("activation not persisted: %+v", a)
	}
}

// Business denials are 200 responses; only transport and credential
// problems use error statuses.
func TestValidate_CancelledLicenseIs200(t *testing.T) {
	r, store := newAPI(t, nil, nil)
	store.PutLicense(testLicenseKey, core.License{
		ID: "lic-1", UserID: "user-1", PlanID: "plan-1", Status: core.StatusCancelled,
	})
	w, body := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", licenseHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["valid"] != false || body["license_status"] != core.StatusCancelled {
		t.Fatalf("unexpected verdict: %v", body)
	}
}

func TestValidate_DeviceLimitIs200(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	for i, dev := range []string{"dev-a", "dev-b"} {
		w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", map[string]string{
			"X-License-Key": testLicenseKey,
			"X-Device-ID":   dev,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("device %d: expected 200, got %d", i, w.Code)
		}
	}
	w, body := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", map[string]string{
		"X-License-Key": testLicenseKey,
		"X-Device-ID":   "dev-c",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["valid"] != false || body["reason"] != core.ReasonDeviceLimitReached {
		t.Fatalf("unexpected verdict: %v", body)
	}
	if body["max_devices"] != float64(2) || body["active_devices"] != float64(2) {
		t.Fatalf("unexpected quota counts: %v", body)
	}
}

func TestValidate_MalformedBody(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", `{"device_name":`, licenseHeaders())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestValidate_SessionCredentialRejected(t *testing.T) {
	issuer := bridgetesting.NewSessionIssuer()
	defer issuer.Close()
	verifier, err := jwtkit.NewSessionVerifier(context.Background(), jwtkit.VerifierConfig{
		Issuer:   issuer.URL(),
		Audience: issuer.Audience(),
		JWKSURL:  issuer.JWKSURL(),
	})
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	r, _ := newAPI(t, verifier, nil)

	// The token authenticates, but validation needs a license credential.
	w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", map[string]string{
		"Authorization": "Bearer " + issuer.CreateSessionToken("user-1"),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", map[string]string{
		"Authorization": "Bearer " + issuer.CreateExpiredToken("user-1"),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session, got %d", w.Code)
	}
}

func TestDevicesListAndDeactivate(t *testing.T) {
	r, _ := newAPI(t, nil, nil)
	if w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", licenseHeaders()); w.Code != http.StatusOK {
		t.Fatalf("seed validate: %d", w.Code)
	}

	w, body := doJSON(t, r, http.MethodGet, "/bridge/devices", "", licenseHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("devices: expected 200, got %d", w.Code)
	}
	devices, _ := body["devices"].([]any)
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %v", body)
	}

	w, body = doJSON(t, r, http.MethodPost, "/bridge/devices/"+testDeviceID+"/deactivate", "", licenseHeaders())
	if w.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("deactivate: code=%d body=%v", w.Code, body)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/bridge/devices/nope/deactivate", "", licenseHeaders())
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown device: expected 404, got %d", w.Code)
	}
}

func TestValidate_RateLimited(t *testing.T) {
	rl := memorylimiter.New(map[string]memorylimiter.Limit{
		ginutil.RLLicenseValidate: {Limit: 2, Window: time.Minute},
	})
	r, _ := newAPI(t, nil, rl)

	for i := 0; i < 2; i++ {
		if w, _ := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", licenseHeaders()); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w, body := doJSON(t, r, http.MethodPost, "/bridge/license/validate", "", licenseHeaders())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %v", w.Code, body)
	}
}
