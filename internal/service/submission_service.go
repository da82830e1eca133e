package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/csform-next/internal/config"
	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/gateway/mmio"
	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/models"
	"github.com/csform-next/internal/repository"
)

// requiredFields 固定必填字段
var requiredFields = []string{
	constants.FieldFirstName,
	constants.FieldLastName,
	constants.FieldPhone,
	constants.FieldZipCode,
	constants.FieldStreetAddress,
	constants.FieldBarangay,
	constants.FieldCity,
	constants.FieldProvince,
}

// ConversionRetryEnqueuer 转化事件补发入队接口
type ConversionRetryEnqueuer interface {
	EnqueueConversionDeliver(envelope mmio.ConversionEnvelope, eventName string) error
}

// Navigation 流水线的落点指令
// 外层负责实际跳转；Pixel 非空时外层应先在浏览器侧补发该事件
type Navigation struct {
	URL       string
	Terminal  bool // 是否为链路终点（感谢页）
	Uncertain bool // 订单状态未知（出站失败但仍放行）
	Pixel     *models.ConversionEvent
}

// SubmissionService 提交流水线服务
// 表单校验、联系方式核验、订单出站与追加销售路由串成一条流水线，
// 各转化事件的上报失败不阻断主流程
type SubmissionService struct {
	pricing     *PricingService
	upsell      *UpsellService
	contacts    *ContactService
	attribution *AttributionService
	gateway     *mmio.Client
	draftRepo   repository.FormDraftRepository
	retry       ConversionRetryEnqueuer
	site        config.SiteConfig
	checkout    config.CheckoutConfig
}

// NewSubmissionService 创建提交流水线服务
func NewSubmissionService(
	pricing *PricingService,
	upsell *UpsellService,
	contacts *ContactService,
	attribution *AttributionService,
	gateway *mmio.Client,
	draftRepo repository.FormDraftRepository,
	retry ConversionRetryEnqueuer,
	site config.SiteConfig,
	checkout config.CheckoutConfig,
) *SubmissionService {
	return &SubmissionService{
		pricing:     pricing,
		upsell:      upsell,
		contacts:    contacts,
		attribution: attribution,
		gateway:     gateway,
		draftRepo:   draftRepo,
		retry:       retry,
		site:        site,
		checkout:    checkout,
	}
}

// ValidateForm 校验必填字段并落盘草稿
// 固定必填字段之外，站点配置声明为必填的扩展字段同样参与校验
func (s *SubmissionService) ValidateForm(sess *CheckoutSession) error {
	for _, field := range requiredFields {
		if sess.Form.Empty(field) {
			return fmt.Errorf("%w: %s", ErrRequiredFieldMissing, field)
		}
	}
	if s.checkout.RequireEmail && sess.Form.Empty(constants.FieldEmail) {
		return fmt.Errorf("%w: %s", ErrRequiredFieldMissing, constants.FieldEmail)
	}
	for _, extra := range s.checkout.ExtraFields {
		if extra.Required && sess.Form.Empty(extra.ID) {
			return fmt.Errorf("%w: %s", ErrRequiredFieldMissing, extra.ID)
		}
	}
	s.SaveDraft(sess)
	return nil
}

// SaveDraft 持久化表单草稿
func (s *SubmissionService) SaveDraft(sess *CheckoutSession) {
	if _, err := s.draftRepo.Save(sess.ID, sess.Form.ToJSON()); err != nil {
		logger.Warnw("form_draft_save_failed", "session_id", sess.ID, "error", err)
	}
}

// SubmitForm 提交表单进入订单确认
// 联系方式核验通过后把格式化手机号写回表单，并上报加购事件
func (s *SubmissionService) SubmitForm(ctx context.Context, sess *CheckoutSession) error {
	if err := s.ValidateForm(sess); err != nil {
		return err
	}

	phone := sess.Form.GetString(constants.FieldPhone)
	email := sess.Form.GetString(constants.FieldEmail)
	phoneResult, emailResult := s.contacts.ValidatePair(ctx, phone, email)
	if !phoneResult.Valid {
		return ErrPhoneInvalid
	}
	if email != "" && !emailResult.Valid {
		return ErrEmailInvalid
	}
	sess.Form[constants.FieldPhone] = phoneResult.Formatted
	sess.Confirmation = true
	s.SaveDraft(sess)

	s.ReportConversion(ctx, sess, constants.EventAddToCart)
	return nil
}

// ReportConversion 上报服务端转化事件
// 出站失败记日志并投递补发任务，绝不向上抛错
func (s *SubmissionService) ReportConversion(ctx context.Context, sess *CheckoutSession, eventName string) {
	bundle := sess.SelectedBundle()
	quantity := sess.Form.Quantity()
	total := s.pricing.TotalPayable(bundle, quantity)
	envelope := mmio.ConversionEnvelope{
		Data:               s.conversionData(sess, total),
		ConversionAPI:      s.attribution.BuildPayload(sess, eventName, total, quantity),
		MetaPixelID:        s.site.MetaPixelID,
		ConversionAPIToken: s.site.ConversionAPIToken,
		Params:             sess.Params,
	}

	if _, err := s.gateway.ReportConversion(ctx, envelope); err != nil {
		logger.Warnw("conversion_report_failed",
			"session_id", sess.ID,
			"event", eventName,
			"error", err,
		)
		if s.retry != nil {
			if err := s.retry.EnqueueConversionDeliver(envelope, eventName); err != nil {
				logger.Warnw("conversion_retry_enqueue_failed",
					"session_id", sess.ID,
					"event", eventName,
					"error", err,
				)
			}
		}
	}
}

// FinalizeSubmission 最终提交订单
// 前置条件：已持有校验令牌。出站前并发上报三个转化事件并等待全部结束；
// 远端确认后清除草稿并给出追加销售或感谢页的落点
func (s *SubmissionService) FinalizeSubmission(ctx context.Context, sess *CheckoutSession) (Navigation, error) {
	token := sess.OTP.ValidationToken
	if token == "" {
		return Navigation{}, ErrVerificationTokenMissing
	}
	bundle := sess.SelectedBundle()
	product := s.pricing.Lookup(bundle)
	if product == nil {
		return Navigation{}, fmt.Errorf("%w: %s", ErrBundleUnknown, bundle)
	}
	quantity := sess.Form.Quantity()
	total := s.pricing.TotalPayable(bundle, quantity)

	var wg sync.WaitGroup
	for _, event := range []string{
		constants.EventInitiateCheckout,
		constants.EventCompleteRegistration,
		constants.EventLead,
	} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.ReportConversion(ctx, sess, name)
		}(event)
	}
	wg.Wait()

	data := sess.Form.ToJSON()
	data[constants.FieldOrder] = product.Name
	data[constants.FieldTotal] = total
	data["type"] = constants.SubmitTypeCheckout

	purchase := s.attribution.BuildPayload(sess, constants.EventPurchase, total, quantity)
	envelope := mmio.SubmitEnvelope{
		Data:               data,
		ConversionAPI:      purchase,
		MetaPixelID:        s.site.MetaPixelID,
		ConversionAPIToken: s.site.ConversionAPIToken,
		Params:             sess.Params,
		VerificationToken:  token,
		SheetID:            s.site.SheetID,
		SheetName:          s.site.SheetName,
		BusinessEmail:      s.site.BusinessEmail,
		BusinessPhone:      s.site.BusinessPhone,
		BusinessName:       s.site.BusinessName,
		SenderID:           s.site.SenderID,
	}

	result, err := s.gateway.SubmitOrder(ctx, envelope)
	if err != nil {
		logger.Errorw("order_submit_failed", "session_id", sess.ID, "error", err)
		return Navigation{}, fmt.Errorf("order submit: %w", err)
	}
	if !result.Status {
		sess.SubmitStatus = constants.SubmitStatusFailed
		logger.Warnw("order_submit_rejected", "session_id", sess.ID)
		return Navigation{}, ErrSubmitRejected
	}

	sess.SubmitStatus = constants.SubmitStatusSuccess
	s.ReportConversion(ctx, sess, constants.EventPurchase)
	if err := s.draftRepo.Delete(sess.ID); err != nil {
		logger.Warnw("form_draft_delete_failed", "session_id", sess.ID, "error", err)
	}
	logger.Infow("order_submitted", "session_id", sess.ID, "bundle", bundle, "total", total)

	page, ok := s.upsell.NextUpsell(bundle, false)
	if !ok {
		return Navigation{
			URL:      s.thankYouURL(nil),
			Terminal: true,
			Pixel:    &purchase,
		}, nil
	}
	query := sess.Form.ToQueryValues()
	query[constants.ParamVerificationToken] = token
	query[constants.ParamOriginalBundle] = bundle
	return Navigation{
		URL:   appendQuery(page, query),
		Pixel: &purchase,
	}, nil
}

// SubmitUpsell 提交追加销售订单
// 入站参数并入表单后剥离校验令牌；无论远端结果如何都把用户送向下一站：
// 确认成功进入第二层或感谢页，明确拒绝回感谢页并标记未加购，
// 前置条件不满足或出站失败同样放行但标记结果未知。
// Purchase 事件在出站前上报，出站失败不吞掉已上报的事件
func (s *SubmissionService) SubmitUpsell(ctx context.Context, sess *CheckoutSession, bundle string) (Navigation, error) {
	product := s.pricing.Lookup(bundle)
	if product == nil {
		logger.Warnw("upsell_bundle_unknown", "session_id", sess.ID, "bundle", bundle)
		return Navigation{
			URL:       s.thankYouURL(map[string]string{constants.ParamAdded: "true"}),
			Terminal:  true,
			Uncertain: true,
		}, nil
	}

	sess.Form.Merge(sess.Params)
	token := sess.Form.GetString(constants.ParamVerificationToken)
	delete(sess.Form, constants.ParamVerificationToken)
	total := product.Price

	s.ReportConversion(ctx, sess, constants.EventPurchase)

	purchase := s.attribution.BuildPayload(sess, constants.EventPurchase, total, 1)
	if token == "" {
		logger.Warnw("upsell_token_missing", "session_id", sess.ID, "bundle", bundle)
		return Navigation{
			URL:       s.thankYouURL(map[string]string{constants.ParamAdded: "true"}),
			Terminal:  true,
			Uncertain: true,
			Pixel:     &purchase,
		}, nil
	}

	data := sess.Form.ToJSON()
	data[constants.FieldOrder] = product.Name
	data[constants.FieldQuantity] = 1
	data[constants.FieldTotal] = total
	data["type"] = constants.SubmitTypeUpsell

	envelope := mmio.SubmitEnvelope{
		Data:               data,
		ConversionAPI:      purchase,
		MetaPixelID:        s.site.MetaPixelID,
		ConversionAPIToken: s.site.ConversionAPIToken,
		Params:             sess.Params,
		VerificationToken:  token,
		SheetID:            s.site.SheetID,
		SheetName:          s.site.SheetName,
		BusinessEmail:      s.site.BusinessEmail,
		BusinessPhone:      s.site.BusinessPhone,
		BusinessName:       s.site.BusinessName,
		SenderID:           s.site.SenderID,
	}

	result, err := s.gateway.SubmitOrder(ctx, envelope)
	if err != nil {
		logger.Warnw("upsell_submit_failed", "session_id", sess.ID, "bundle", bundle, "error", err)
		return Navigation{
			URL:       s.thankYouURL(map[string]string{constants.ParamAdded: "true"}),
			Terminal:  true,
			Uncertain: true,
			Pixel:     &purchase,
		}, nil
	}
	if !result.Status {
		return Navigation{
			URL:      s.thankYouURL(map[string]string{constants.ParamAdded: "false"}),
			Terminal: true,
		}, nil
	}

	logger.Infow("upsell_submitted", "session_id", sess.ID, "bundle", bundle, "total", total)

	if !sess.SecondLayer {
		if page, ok := s.upsell.NextUpsell(sess.OriginalBundle(), true); ok {
			query := sess.Form.ToQueryValues()
			query[constants.ParamVerificationToken] = token
			query[constants.ParamOriginalBundle] = sess.OriginalBundle()
			query[constants.ParamSecondLayer] = "true"
			return Navigation{
				URL:   appendQuery(page, query),
				Pixel: &purchase,
			}, nil
		}
	}
	return Navigation{
		URL:      s.thankYouURL(map[string]string{constants.ParamAdded: "true"}),
		Terminal: true,
		Pixel:    &purchase,
	}, nil
}

// conversionData 转化事件信封的 data 段（表单加订单金额）
func (s *SubmissionService) conversionData(sess *CheckoutSession, total int64) models.JSON {
	data := sess.Form.ToJSON()
	data[constants.FieldTotal] = total
	return data
}

func (s *SubmissionService) thankYouURL(extra map[string]string) string {
	base := s.checkout.ThankYouURL
	if base == "" {
		base = "./thankyou.html"
	}
	if len(extra) == 0 {
		return base
	}
	return appendQuery(base, extra)
}

// appendQuery 在既有地址上追加查询参数，保留原有参数
func appendQuery(rawURL string, params map[string]string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// parseBool 兼容 "true"/"1" 形式的布尔参数
func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return parsed
}
