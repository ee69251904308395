package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"jlrp/internal/app"
	"jlrp/internal/config"
	"jlrp/internal/database"
	"jlrp/internal/notify"
	"jlrp/internal/payment"
	"jlrp/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

const goodSignature = "valid-signature"

// stubGateway accepts one fixed signature and refunds everything.
type stubGateway struct {
	mu      sync.Mutex
	refunds []int64
}

func (g *stubGateway) CreateOrder(_ context.Context, amountMinor int64, receipt string) (*payment.GatewayOrder, error) {
	if amountMinor <= 0 {
		return nil, payment.ErrInvalidAmount
	}
	return &payment.GatewayOrder{ID: "order_" + receipt[:8], Amount: amountMinor, Currency: "INR"}, nil
}

func (g *stubGateway) VerifySignature(_, _, signature string) error {
	if signature != goodSignature {
		return payment.ErrSignatureInvalid
	}
	return nil
}

func (g *stubGateway) Refund(_ context.Context, _ string, amountMinor int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, amountMinor)
	return fmt.Sprintf("rfnd_%d", len(g.refunds)), nil
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

type outbox struct {
	mu   sync.Mutex
	jobs []notify.Job
}

func (o *outbox) Dispatch(job notify.Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
}

func (o *outbox) templates() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, j := range o.jobs {
		out = append(out, j.Template)
	}
	return out
}

type testEnv struct {
	app     *app.App
	gateway *stubGateway
	outbox  *outbox
}

// setupApp builds the full application over a private in-memory SQLite
// database.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.OpenGORM(sqlite.Open(dsn), false)
	require.NoError(t, err)
	repos := repositories.NewGORMSet(db)

	cfg := &config.Config{
		AppEnv:           "development",
		JWTSecret:        "test_jwt_secret",
		JWTAlgorithm:     "HS256",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       24 * time.Hour,
		ResetTTL:         time.Hour,
		ExposeResetToken: true,
		FrontendBaseURL:  "http://localhost:3000",
		StorageDriver:    "local",
		UploadDir:        t.TempDir(),
		MaxImageSize:     1 << 20,
		CORSOrigins:      "*",
		NotifyWorkers:    1,
	}

	env := &testEnv{gateway: &stubGateway{}, outbox: &outbox{}}
	env.app, err = app.New(context.Background(), cfg, zerolog.Nop(), app.Options{
		Repos:      &repos,
		Gateway:    env.gateway,
		Dispatcher: env.outbox,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = env.app.Shutdown(context.Background())
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := e.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (e *testEnv) registerAndLogin(t *testing.T, email, password string) string {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": password, "full_name": "Test User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string)
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.app.Auth.SeedAdmin(context.Background(), "owner@jlrp.test", "owner-pass", "Owner")
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodPost, "/admin/login", "", map[string]string{
		"email": "owner@jlrp.test", "password": "owner-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := body["user"].(map[string]any)
	assert.Equal(t, "admin", user["role"])
	return body["access_token"].(string)
}

func (e *testEnv) createProduct(t *testing.T, token, title string, price float64) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/products", token, map[string]any{
		"title":       title,
		"gender":      "Men",
		"category":    "clothing",
		"subcategory": "tshirt",
		"price":       price,
		"available":   true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["id"].(string)
}

func shippingAddress() map[string]string {
	return map[string]string{
		"full_name":     "Asha Rao",
		"phone":         "9999999999",
		"pincode":       "560001",
		"address_line1": "12 MG Road",
		"city":          "Bengaluru",
		"state":         "KA",
		"country":       "India",
	}
}

func TestHealth(t *testing.T) {
	env := setupApp(t)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = env.do(t, http.MethodGet, "/no/such/route", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["message"])
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	registration := map[string]string{
		"email":    "Test@Example.com",
		"password": "password123",
	}
	resp, body := env.do(t, http.MethodPost, "/auth/register", "", registration)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "test@example.com", user["email"])
	assert.NotContains(t, user, "hashed_password")

	// Test Duplicate Registration, differing only in case
	registration["email"] = "TEST@example.com"
	resp, _ = env.do(t, http.MethodPost, "/auth/register", "", registration)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "test@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	assert.NotEmpty(t, body["message"])

	resp, body = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "test@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bearer", body["token_type"])
	token := body["access_token"].(string)
	assert.NotEmpty(t, token)

	var refresh *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/auth", refresh.Path)

	resp, body = env.do(t, http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test@example.com", body["email"])

	resp, _ = env.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Refresh rotates the cookie; the old value stops working.
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh.Value})
	resp, body = env.send(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])

	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh.Value})
	resp, _ = env.send(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Customers are refused by the admin login like a bad password.
	resp, _ = env.do(t, http.MethodPost, "/admin/login", "", map[string]string{
		"email": "test@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	env := setupApp(t)
	env.registerAndLogin(t, "reset@example.com", "old-password")

	resp, body := env.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": "reset@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["reset_token"].(string)
	require.NotEmpty(t, token)
	assert.Contains(t, env.outbox.templates(), notify.TemplatePasswordReset)

	resp, _ = env.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "new-password",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{
		"token": token, "new_password": "another-password",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "reset@example.com", "password": "new-password",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Unknown addresses get the same answer as known ones.
	resp, _ = env.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProductEndpoints(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	customer := env.registerAndLogin(t, "shopper@example.com", "password123")

	newProduct := map[string]any{
		"title": "Unauthorized", "gender": "men", "category": "clothing", "subcategory": "tshirt", "price": 10,
	}
	resp, _ := env.do(t, http.MethodPost, "/products", "", newProduct)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, body := env.do(t, http.MethodPost, "/products", customer, newProduct)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not enough permissions", body["message"])

	newProduct["subcategory"] = "sneakers"
	resp, _ = env.do(t, http.MethodPost, "/products", admin, newProduct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cheap := env.createProduct(t, admin, "Basic Tee", 299)
	pricey := env.createProduct(t, admin, "Linen Tee", 1299)

	req := httptest.NewRequest(http.MethodGet, "/products?sort_by=price&sort_dir=-1", nil)
	res, err := env.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	var products []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&products))
	res.Body.Close()
	require.Len(t, products, 2)
	assert.Equal(t, pricey, products[0]["id"])
	assert.Equal(t, cheap, products[1]["id"])

	resp, _ = env.do(t, http.MethodGet, "/products?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/products/"+cheap, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "men", body["gender"])

	resp, body = env.do(t, http.MethodPatch, "/products/"+cheap, admin, map[string]any{"price": 349.5})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 349.5, body["price"])
	assert.Equal(t, "Basic Tee", body["title"])

	resp, _ = env.do(t, http.MethodDelete, "/products/"+cheap, admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/products/"+cheap, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, token, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestImageUpload(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)

	resp, body := env.send(t, multipartRequest(t, "/products/upload-image", admin, "file", "shirt.png", pngBytes(t), nil))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	url := body["url"].(string)
	assert.Contains(t, url, "/uploads/")

	resp, body = env.send(t, multipartRequest(t, "/products/upload-image", admin, "file", "notes.png", []byte("plain text"), nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, body = env.send(t, multipartRequest(t, "/admin/upload-image", admin, "file", "banner.png", pngBytes(t),
		map[string]string{"title": "Banner", "description": "home page"}))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := body["id"].(string)
	assert.Equal(t, "Banner", body["title"])

	resp, body = env.do(t, http.MethodGet, "/admin/images?q=bann", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, body = env.do(t, http.MethodDelete, "/admin/image/"+id, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["deleted_id"])

	resp, _ = env.do(t, http.MethodDelete, "/admin/image/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckoutFulfillmentAndReturn(t *testing.T) {
	env := setupApp(t)
	admin := env.adminToken(t)
	customer := env.registerAndLogin(t, "asha@example.com", "password123")
	productID := env.createProduct(t, admin, "Cotton Kurta", 799.99)

	checkout := map[string]any{
		"email":            "Asha@Example.com",
		"items":            []map[string]any{{"product_id": productID, "quantity": 2, "size": "M"}},
		"shipping_address": shippingAddress(),
	}
	resp, body := env.do(t, http.MethodPost, "/payment/create-order", "", checkout)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, 1599.98, body["amount"])
	assert.Equal(t, "rzp_test_key", body["key_id"])
	gatewayOrderID := body["order_id"].(string)
	orderID := body["db_order_id"].(string)

	checkout["amount"] = 10.0
	resp, _ = env.do(t, http.MethodPost, "/payment/create-order", "", checkout)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// An amount alone does not describe an order.
	resp, _ = env.do(t, http.MethodPost, "/payment/create-order", "", map[string]any{"amount": 499})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unpaid orders cannot be processed.
	resp, _ = env.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, map[string]string{"status": "processing"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	verify := map[string]string{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": "pay_123",
		"razorpay_signature":  "forged",
	}
	resp, _ = env.do(t, http.MethodPost, "/payment/verify", "", verify)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	verify["razorpay_signature"] = goodSignature
	resp, body = env.do(t, http.MethodPost, "/payment/verify", "", verify)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	assert.Contains(t, env.outbox.templates(), notify.TemplateOrderConfirmed)

	// A forged confirmation cannot fail an order that is already paid.
	resp, _ = env.do(t, http.MethodPost, "/payment/verify", "", map[string]string{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": "pay_999",
		"razorpay_signature":  "forged",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/public/orders/track/"+gatewayOrderID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PAID", body["payment_status"])
	assert.Equal(t, "PENDING", body["status"])
	assert.NotContains(t, body, "email")

	// A customer cannot return an order that has not been delivered.
	returnReq := map[string]string{"order_id": orderID, "product_id": productID, "reason": "too small"}
	resp, _ = env.do(t, http.MethodPost, "/returns/request", customer, returnReq)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	for _, status := range []string{"processing", "shipped", "delivered"} {
		resp, body = env.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, map[string]any{
			"status": status, "tracking_id": "TRK1", "courier_name": "BlueDart",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
	}
	assert.Equal(t, "DELIVERED", body["status"])
	assert.Contains(t, env.outbox.templates(), notify.TemplateOrderShipped)
	assert.Contains(t, env.outbox.templates(), notify.TemplateOrderDelivered)

	resp, _ = env.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	stranger := env.registerAndLogin(t, "other@example.com", "password123")
	resp, _ = env.do(t, http.MethodPost, "/returns/request", stranger, returnReq)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/returns/request", customer, returnReq)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	requestID := body["id"].(string)
	assert.Equal(t, "pending", body["status"])

	resp, _ = env.do(t, http.MethodPost, "/returns/request", customer, returnReq)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/admin/overview", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["returns"].(map[string]any)["pending"])
	assert.EqualValues(t, 1599.98, stats["sales"].(map[string]any)["total_revenue"])

	resp, _ = env.do(t, http.MethodGet, "/returns/admin/list?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/returns/admin/action", admin, map[string]string{
		"request_id": requestID, "action": "approve",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["ok"])
	refund := body["refund"].(map[string]any)
	assert.Equal(t, "rfnd_1", refund["id"])
	assert.EqualValues(t, 79999, refund["amount"])
	assert.Contains(t, env.outbox.templates(), notify.TemplateReturnRefunded)

	resp, _ = env.do(t, http.MethodPost, "/returns/admin/action", admin, map[string]string{
		"request_id": requestID, "action": "approve",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, env.gateway.refunds, 1)
}
