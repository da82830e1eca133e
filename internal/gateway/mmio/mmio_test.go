package mmio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/csform-next/internal/models"
)

func newClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIHost:            endpoint,
		ConversionEndpoint: endpoint + "/conversion",
		ValidationHost:     endpoint,
	})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	return client
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(nil); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("nil config should be invalid, got %v", err)
	}
	if err := ValidateConfig(&Config{APIHost: "http://api"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("partial config should be invalid, got %v", err)
	}
	if err := ValidateConfig(&Config{
		APIHost:            "http://api",
		ConversionEndpoint: "http://capi",
		ValidationHost:     "http://check",
	}); err != nil {
		t.Fatalf("full config should pass, got %v", err)
	}
}

func TestRequestOTP(t *testing.T) {
	var gotPhone, gotSender string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cform_request_otp" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotPhone = r.URL.Query().Get("phone_number")
		gotSender = r.URL.Query().Get("senderId")
		w.Write([]byte(`{"cache_key":"ck-9"}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	cacheKey, err := client.RequestOTP(context.Background(), "639171234567", "BRAND")
	if err != nil {
		t.Fatalf("request otp failed: %v", err)
	}
	if cacheKey != "ck-9" {
		t.Fatalf("want cache key ck-9, got %q", cacheKey)
	}
	if gotPhone != "639171234567" || gotSender != "BRAND" {
		t.Fatalf("unexpected query: phone=%q sender=%q", gotPhone, gotSender)
	}
}

func TestRequestOTPRejectsEmptyPhone(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1")
	if _, err := client.RequestOTP(context.Background(), " ", "BRAND"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("blank phone should fail before the network, got %v", err)
	}
}

func TestRequestOTPEmptyCacheKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.RequestOTP(context.Background(), "639171234567", "BRAND"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("missing cache_key should fail, got %v", err)
	}
}

func TestVerifyOTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cache_key") == "ck-9" && r.URL.Query().Get("otp") == "4321" {
			w.Write([]byte(`{"status":true,"verification_token":"vt-9"}`))
			return
		}
		w.Write([]byte(`{"status":false}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	result, err := client.VerifyOTP(context.Background(), "ck-9", "4321")
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}
	if !result.Status || result.VerificationToken != "vt-9" {
		t.Fatalf("unexpected result: %+v", result)
	}

	result, err = client.VerifyOTP(context.Background(), "ck-9", "0000")
	if err != nil {
		t.Fatalf("verify otp failed: %v", err)
	}
	if result.Status {
		t.Fatalf("wrong code should come back rejected")
	}
}

func TestSubmitOrder(t *testing.T) {
	var received SubmitEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cform_handle_submit" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"status":true,"order_id":"ord-1"}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	result, err := client.SubmitOrder(context.Background(), SubmitEnvelope{
		Data:              models.JSON{"order": "6-boxes of MX3 Coffee Mix"},
		VerificationToken: "vt-9",
		SheetID:           "sheet-1",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Status {
		t.Fatalf("want accepted submit")
	}
	if result.Raw["order_id"] != "ord-1" {
		t.Fatalf("raw payload should be kept, got %v", result.Raw)
	}
	if received.VerificationToken != "vt-9" || received.SheetID != "sheet-1" {
		t.Fatalf("envelope fields should reach the wire, got %+v", received)
	}
}

func TestSubmitOrderTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.SubmitOrder(context.Background(), SubmitEnvelope{}); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("non-2xx should fail, got %v", err)
	}
}

func TestReportConversionReturnsOpaqueBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversion" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`relayed`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	body, err := client.ReportConversion(context.Background(), ConversionEnvelope{})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if body != "relayed" {
		t.Fatalf("relay body is opaque text, got %q", body)
	}
}
