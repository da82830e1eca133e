package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/gateway/mmio"
	"github.com/csform-next/internal/models"
	"github.com/csform-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// submitBackend 汇总订单出站、转化中继与联系方式校验的测试后端
type submitBackend struct {
	server *httptest.Server

	mu               sync.Mutex
	submitAccept     bool
	submitHTTPStatus int
	conversionStatus int
	submits          []mmio.SubmitEnvelope
	conversionEvents []string
}

func newSubmitBackend(t *testing.T) *submitBackend {
	t.Helper()
	backend := &submitBackend{
		submitAccept:     true,
		submitHTTPStatus: http.StatusOK,
		conversionStatus: http.StatusOK,
	}
	backend.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/cform_handle_submit":
			backend.mu.Lock()
			var envelope mmio.SubmitEnvelope
			_ = json.NewDecoder(r.Body).Decode(&envelope)
			backend.submits = append(backend.submits, envelope)
			status, accept := backend.submitHTTPStatus, backend.submitAccept
			backend.mu.Unlock()
			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			if accept {
				w.Write([]byte(`{"status":true}`))
			} else {
				w.Write([]byte(`{"status":false}`))
			}
		case r.URL.Path == "/conversion":
			var envelope mmio.ConversionEnvelope
			_ = json.NewDecoder(r.Body).Decode(&envelope)
			backend.mu.Lock()
			backend.conversionEvents = append(backend.conversionEvents, envelope.ConversionAPI.EventName)
			status := backend.conversionStatus
			backend.mu.Unlock()
			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			w.Write([]byte(`ok`))
		case strings.HasPrefix(r.URL.Path, "/validate_phone/"):
			number := strings.TrimPrefix(r.URL.Path, "/validate_phone/")
			if number == "639171234567" {
				_ = json.NewEncoder(w).Encode(mmio.ValidationResult{Valid: true, Formatted: "+639171234567"})
				return
			}
			_ = json.NewEncoder(w).Encode(mmio.ValidationResult{Valid: false})
		case strings.HasPrefix(r.URL.Path, "/validate_email/"):
			email := strings.TrimPrefix(r.URL.Path, "/validate_email/")
			_ = json.NewEncoder(w).Encode(mmio.ValidationResult{Valid: !strings.Contains(email, "bad")})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(backend.server.Close)
	return backend
}

func (b *submitBackend) lastSubmit(t *testing.T) mmio.SubmitEnvelope {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.submits) == 0 {
		t.Fatalf("no submit request received")
	}
	return b.submits[len(b.submits)-1]
}

func (b *submitBackend) eventCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[string]int, len(b.conversionEvents))
	for _, name := range b.conversionEvents {
		counts[name]++
	}
	return counts
}

// recordingEnqueuer 记录补发任务的假队列
type recordingEnqueuer struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEnqueuer) EnqueueConversionDeliver(_ mmio.ConversionEnvelope, eventName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventName)
	return nil
}

func newDraftRepo(t *testing.T) repository.FormDraftRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "draft.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.FormDraft{}, &models.ContactVerdict{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return repository.NewFormDraftRepository(db)
}

type submissionFixture struct {
	svc     *SubmissionService
	backend *submitBackend
	drafts  repository.FormDraftRepository
	retry   *recordingEnqueuer
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	backend := newSubmitBackend(t)
	gateway, err := mmio.NewClient(mmio.Config{
		APIHost:            backend.server.URL,
		ConversionEndpoint: backend.server.URL + "/conversion",
		ValidationHost:     backend.server.URL,
	})
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}

	pricing, _ := newTestPricing(nil, "")
	upsell, err := NewUpsellService(testUpsellConfigs())
	if err != nil {
		t.Fatalf("new upsell service failed: %v", err)
	}
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	attribution := NewAttributionService(func() time.Time { return frozen })
	contacts := NewContactService(gateway, newVerdictRepo(t), 0, nil)
	drafts := newDraftRepo(t)
	retry := &recordingEnqueuer{}

	site := config.SiteConfig{
		MetaPixelID:        "px-1",
		ConversionAPIToken: "capi-token",
		SheetID:            "sheet-1",
		SheetName:          "orders",
		BusinessEmail:      "shop@example.com",
		BusinessPhone:      "0281234567",
		BusinessName:       "Test Shop",
		SenderID:           "BRAND",
	}
	svc := NewSubmissionService(pricing, upsell, contacts, attribution, gateway, drafts, retry, site, config.CheckoutConfig{})

	return &submissionFixture{svc: svc, backend: backend, drafts: drafts, retry: retry}
}

func newFilledSession() *CheckoutSession {
	sess := &CheckoutSession{
		ID:           "sess-submit",
		Form:         models.NewFormRecord(nil),
		Params:       map[string]string{},
		Cookies:      map[string]string{},
		SourceURL:    "https://shop.example.com/6-boxes.html",
		EventSeed:    "seed1",
		AgreeToTerms: true,
	}
	sess.Form.Merge(map[string]string{
		constants.FieldFirstName:     "Juan",
		constants.FieldLastName:      "Dela Cruz",
		constants.FieldPhone:         "09171234567",
		constants.FieldZipCode:       "1000",
		constants.FieldStreetAddress: "123 Rizal St",
		constants.FieldBarangay:      "Poblacion",
		constants.FieldCity:          "Manila",
		constants.FieldProvince:      "Metro Manila",
		constants.FieldBundle:        "6-boxes",
	})
	return sess
}

func TestValidateFormMissingField(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.Form[constants.FieldCity] = ""

	err := fixture.svc.ValidateForm(sess)
	if !errors.Is(err, ErrRequiredFieldMissing) {
		t.Fatalf("want ErrRequiredFieldMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), constants.FieldCity) {
		t.Fatalf("error should name the missing field, got %v", err)
	}
}

func TestValidateFormSavesDraft(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()

	if err := fixture.svc.ValidateForm(sess); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	draft, err := fixture.drafts.Get(sess.ID)
	if err != nil {
		t.Fatalf("read draft failed: %v", err)
	}
	if draft == nil {
		t.Fatalf("valid form should be persisted as a draft")
	}
}

func TestSubmitFormWritesFormattedPhone(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()

	if err := fixture.svc.SubmitForm(context.Background(), sess); err != nil {
		t.Fatalf("submit form failed: %v", err)
	}
	if got := sess.Form.GetString(constants.FieldPhone); got != "+639171234567" {
		t.Fatalf("formatted phone should be written back, got %q", got)
	}
	if !sess.Confirmation {
		t.Fatalf("submit form should enter confirmation")
	}
	if counts := fixture.backend.eventCounts(); counts[constants.EventAddToCart] != 1 {
		t.Fatalf("want one AddToCart report, got %v", counts)
	}
}

func TestSubmitFormRejectsInvalidPhone(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.Form[constants.FieldPhone] = "09990000000"

	if err := fixture.svc.SubmitForm(context.Background(), sess); !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("want ErrPhoneInvalid, got %v", err)
	}
	if sess.Confirmation {
		t.Fatalf("rejected submit must not enter confirmation")
	}
}

func TestSubmitFormRejectsInvalidEmail(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.Form[constants.FieldEmail] = "bad@example.com"

	if err := fixture.svc.SubmitForm(context.Background(), sess); !errors.Is(err, ErrEmailInvalid) {
		t.Fatalf("want ErrEmailInvalid, got %v", err)
	}
}

func TestReportConversionFailureEnqueuesRetry(t *testing.T) {
	fixture := newSubmissionFixture(t)
	fixture.backend.conversionStatus = http.StatusBadGateway
	sess := newFilledSession()

	fixture.svc.ReportConversion(context.Background(), sess, constants.EventLead)

	fixture.retry.mu.Lock()
	defer fixture.retry.mu.Unlock()
	if len(fixture.retry.events) != 1 || fixture.retry.events[0] != constants.EventLead {
		t.Fatalf("failed report should enqueue a retry, got %v", fixture.retry.events)
	}
}

func TestFinalizeSubmissionRequiresToken(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()

	if _, err := fixture.svc.FinalizeSubmission(context.Background(), sess); !errors.Is(err, ErrVerificationTokenMissing) {
		t.Fatalf("want ErrVerificationTokenMissing, got %v", err)
	}
}

func TestFinalizeSubmissionUnknownBundle(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.OTP.ValidationToken = "vt-1"
	sess.Form[constants.FieldBundle] = "99-boxes"

	if _, err := fixture.svc.FinalizeSubmission(context.Background(), sess); !errors.Is(err, ErrBundleUnknown) {
		t.Fatalf("want ErrBundleUnknown, got %v", err)
	}
}

func TestFinalizeSubmissionRoutesToUpsell(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.OTP.ValidationToken = "vt-1"
	fixture.svc.SaveDraft(sess)

	nav, err := fixture.svc.FinalizeSubmission(context.Background(), sess)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if sess.SubmitStatus != constants.SubmitStatusSuccess {
		t.Fatalf("want submit status success, got %q", sess.SubmitStatus)
	}

	envelope := fixture.backend.lastSubmit(t)
	if got := envelope.Data[constants.FieldOrder]; got != "6-boxes of MX3 Coffee Mix" {
		t.Fatalf("order should carry the catalog display name, got %v", got)
	}
	if got := envelope.Data[constants.FieldTotal]; got != float64(1176) {
		t.Fatalf("payable should be posted under %q, got %v", constants.FieldTotal, got)
	}
	if _, found := envelope.Data["amount"]; found {
		t.Fatalf("payable must not be posted under a stray amount key")
	}
	if got := envelope.Data["type"]; got != constants.SubmitTypeCheckout {
		t.Fatalf("want type checkout, got %v", got)
	}
	if envelope.VerificationToken != "vt-1" {
		t.Fatalf("submit should carry the validation token, got %q", envelope.VerificationToken)
	}
	if envelope.ConversionAPI.EventName != constants.EventPurchase {
		t.Fatalf("submit payload should carry a Purchase event, got %q", envelope.ConversionAPI.EventName)
	}

	parsed, err := url.Parse(nav.URL)
	if err != nil {
		t.Fatalf("parse navigation url failed: %v", err)
	}
	if parsed.Path != "./upsell-12-boxes.html" && !strings.HasSuffix(parsed.Path, "upsell-12-boxes.html") {
		t.Fatalf("want primary upsell page, got %q", nav.URL)
	}
	query := parsed.Query()
	if query.Get(constants.ParamVerificationToken) != "vt-1" {
		t.Fatalf("upsell link should carry the token, got %q", nav.URL)
	}
	if query.Get(constants.ParamOriginalBundle) != "6-boxes" {
		t.Fatalf("upsell link should pin the original bundle, got %q", nav.URL)
	}
	if nav.Terminal {
		t.Fatalf("upsell hop is not terminal")
	}
	if nav.Pixel == nil || nav.Pixel.EventName != constants.EventPurchase {
		t.Fatalf("navigation should carry a browser-side Purchase event")
	}

	counts := fixture.backend.eventCounts()
	for _, event := range []string{
		constants.EventInitiateCheckout,
		constants.EventCompleteRegistration,
		constants.EventLead,
		constants.EventPurchase,
	} {
		if counts[event] != 1 {
			t.Fatalf("want one %s report, got %v", event, counts)
		}
	}

	draft, err := fixture.drafts.Get(sess.ID)
	if err != nil {
		t.Fatalf("read draft failed: %v", err)
	}
	if draft != nil {
		t.Fatalf("confirmed order should clear the draft")
	}
}

func TestFinalizeSubmissionRejected(t *testing.T) {
	fixture := newSubmissionFixture(t)
	fixture.backend.submitAccept = false
	sess := newFilledSession()
	sess.OTP.ValidationToken = "vt-1"

	if _, err := fixture.svc.FinalizeSubmission(context.Background(), sess); !errors.Is(err, ErrSubmitRejected) {
		t.Fatalf("want ErrSubmitRejected, got %v", err)
	}
	if sess.SubmitStatus != constants.SubmitStatusFailed {
		t.Fatalf("want submit status failed, got %q", sess.SubmitStatus)
	}
}

func TestFinalizeSubmissionThankYouWithoutUpsellRoute(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.OTP.ValidationToken = "vt-1"
	sess.Form[constants.FieldBundle] = "1-box"

	nav, err := fixture.svc.FinalizeSubmission(context.Background(), sess)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !nav.Terminal {
		t.Fatalf("no upsell route should land on the thank-you page")
	}
	if nav.URL != "./thankyou.html" {
		t.Fatalf("want default thank-you url, got %q", nav.URL)
	}
}

func TestFinalizeSubmissionOrderNameVerbatim(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.OTP.ValidationToken = "vt-1"
	sess.Form[constants.FieldBundle] = "mx3-capsule-blister-pack"

	if _, err := fixture.svc.FinalizeSubmission(context.Background(), sess); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	envelope := fixture.backend.lastSubmit(t)
	// 商品键不参与订单描述，出站的是目录里的展示名
	if got := envelope.Data[constants.FieldOrder]; got != "7-packs of MX3 Capsule Blister Pack" {
		t.Fatalf("want the catalog display name verbatim, got %v", got)
	}
	if got := envelope.Data[constants.FieldTotal]; got != float64(170) {
		t.Fatalf("total should follow the selected bundle, got %v", got)
	}
}

func TestSubmitUpsellSuccessRoutesToSecondLayer(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.Params[constants.ParamVerificationToken] = "vt-1"
	sess.Params[constants.ParamOriginalBundle] = "6-boxes"

	nav, err := fixture.svc.SubmitUpsell(context.Background(), sess, "3-boxes")
	if err != nil {
		t.Fatalf("submit upsell failed: %v", err)
	}
	if nav.Terminal {
		t.Fatalf("first-layer acceptance should continue to the second layer")
	}
	parsed, _ := url.Parse(nav.URL)
	if !strings.HasSuffix(parsed.Path, "upsell-3-boxes.html") {
		t.Fatalf("want secondary upsell page, got %q", nav.URL)
	}
	query := parsed.Query()
	if query.Get(constants.ParamSecondLayer) != "true" {
		t.Fatalf("second-layer link should be flagged, got %q", nav.URL)
	}
	if query.Get(constants.ParamVerificationToken) != "vt-1" {
		t.Fatalf("second-layer link should carry the token, got %q", nav.URL)
	}

	envelope := fixture.backend.lastSubmit(t)
	if got := envelope.Data["type"]; got != constants.SubmitTypeUpsell {
		t.Fatalf("want type upsell, got %v", got)
	}
	if got := envelope.Data[constants.FieldOrder]; got != "3-boxes of MX3 Coffee Mix" {
		t.Fatalf("order should carry the catalog display name, got %v", got)
	}
	if got := envelope.Data[constants.FieldQuantity]; got != float64(1) {
		t.Fatalf("upsell quantity is always 1, got %v", got)
	}
	if got := envelope.Data[constants.FieldTotal]; got != float64(599) {
		t.Fatalf("upsell total should be the bundle price, got %v", got)
	}
}

func TestSubmitUpsellSecondLayerEndsAtThankYou(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.Params[constants.ParamVerificationToken] = "vt-1"
	sess.SecondLayer = true

	nav, err := fixture.svc.SubmitUpsell(context.Background(), sess, "3-boxes")
	if err != nil {
		t.Fatalf("submit upsell failed: %v", err)
	}
	if !nav.Terminal {
		t.Fatalf("second-layer acceptance should terminate the flow")
	}
	if !strings.Contains(nav.URL, constants.ParamAdded+"=true") {
		t.Fatalf("thank-you link should mark the add-on, got %q", nav.URL)
	}
}

func TestSubmitUpsellRejectedReturnsToThankYou(t *testing.T) {
	fixture := newSubmissionFixture(t)
	fixture.backend.submitAccept = false
	sess := newFilledSession()
	sess.Params[constants.ParamVerificationToken] = "vt-1"

	nav, err := fixture.svc.SubmitUpsell(context.Background(), sess, "3-boxes")
	if err != nil {
		t.Fatalf("rejected upsell should not error, got %v", err)
	}
	if !nav.Terminal || nav.Uncertain {
		t.Fatalf("rejected upsell is terminal and certain, got %+v", nav)
	}
	if !strings.Contains(nav.URL, constants.ParamAdded+"=false") {
		t.Fatalf("thank-you link should mark the rejection, got %q", nav.URL)
	}
}

func TestSubmitUpsellTransportErrorStillNavigates(t *testing.T) {
	fixture := newSubmissionFixture(t)
	fixture.backend.submitHTTPStatus = http.StatusBadGateway
	sess := newFilledSession()
	sess.Params[constants.ParamVerificationToken] = "vt-1"

	nav, err := fixture.svc.SubmitUpsell(context.Background(), sess, "3-boxes")
	if err != nil {
		t.Fatalf("transport failure should not error, got %v", err)
	}
	if !nav.Terminal || !nav.Uncertain {
		t.Fatalf("transport failure lands on thank-you with unknown outcome, got %+v", nav)
	}
	if !strings.Contains(nav.URL, constants.ParamAdded+"=true") {
		t.Fatalf("unknown outcome still marks the add-on, got %q", nav.URL)
	}
	// Purchase 在出站前上报，出站失败不回收
	if counts := fixture.backend.eventCounts(); counts[constants.EventPurchase] != 1 {
		t.Fatalf("want one Purchase report despite the failed submit, got %v", counts)
	}
}

func TestSubmitUpsellMissingTokenStillNavigates(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()

	nav, err := fixture.svc.SubmitUpsell(context.Background(), sess, "3-boxes")
	if err != nil {
		t.Fatalf("missing token should not error, got %v", err)
	}
	if !nav.Terminal || !nav.Uncertain {
		t.Fatalf("missing token lands on thank-you with unknown outcome, got %+v", nav)
	}
	if !strings.Contains(nav.URL, constants.ParamAdded+"=true") {
		t.Fatalf("thank-you link should mark the add-on, got %q", nav.URL)
	}
	if counts := fixture.backend.eventCounts(); counts[constants.EventPurchase] != 1 {
		t.Fatalf("Purchase still fires ahead of the aborted submit, got %v", counts)
	}
}

func TestSubmitUpsellUnknownBundleStillNavigates(t *testing.T) {
	fixture := newSubmissionFixture(t)
	sess := newFilledSession()
	sess.Params[constants.ParamVerificationToken] = "vt-1"

	nav, err := fixture.svc.SubmitUpsell(context.Background(), sess, "99-boxes")
	if err != nil {
		t.Fatalf("unknown bundle should not error, got %v", err)
	}
	if !nav.Terminal || !nav.Uncertain {
		t.Fatalf("unknown bundle lands on thank-you with unknown outcome, got %+v", nav)
	}
	if !strings.Contains(nav.URL, constants.ParamAdded+"=true") {
		t.Fatalf("thank-you link should mark the add-on, got %q", nav.URL)
	}
}
