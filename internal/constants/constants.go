package constants

// 提交类型常量
const (
	SubmitTypeCheckout = "checkout"
	SubmitTypeUpsell   = "upsell"
)

// 提交结果状态常量
const (
	SubmitStatusSuccess = "success"
	SubmitStatusFailed  = "failed"
)

// 转化事件名常量
const (
	EventPageView             = "PageView"
	EventAddToCart            = "AddToCart"
	EventInitiateCheckout     = "InitiateCheckout"
	EventCompleteRegistration = "CompleteRegistration"
	EventLead                 = "Lead"
	EventPurchase             = "Purchase"
)

// 表单字段常量
const (
	FieldFirstName     = "firstName"
	FieldLastName      = "lastName"
	FieldPhone         = "phone"
	FieldEmail         = "email"
	FieldZipCode       = "zip-code"
	FieldStreetAddress = "streetAddress"
	FieldBarangay      = "barangay"
	FieldCity          = "city"
	FieldProvince      = "province"
	FieldPaymentMethod = "payment_method"
	FieldBundle        = "bundle"
	FieldQuantity      = "quantity"
	FieldTotal         = "total"
	FieldOrder         = "order"
)

// 链路追踪查询参数常量
const (
	ParamVerificationToken = "verificationToken"
	ParamOriginalBundle    = "originalBundle"
	ParamSecondLayer       = "secondLayer"
	ParamSubmissionStatus  = "submission_status"
	ParamAdded             = "added"
	ParamFbclid            = "fbclid"
)

// 联系方式校验常量
const (
	// CountryCallingCode 菲律宾国际区号
	CountryCallingCode = "63"
	// VerdictInvalid 校验缓存中的“无效”标记
	VerdictInvalid = "invalid"
	// VerdictKindPhone 手机号校验缓存类型
	VerdictKindPhone = "phone"
	// VerdictKindEmail 邮箱校验缓存类型
	VerdictKindEmail = "email"
)

// 本地化常量
const (
	CurrencyPHP   = "PHP"
	CivilTimezone = "Asia/Manila"
)

// OTP 过期策略常量
const (
	OTPExpiryPolicyNone  = "none"
	OTPExpiryPolicyBlock = "block"
)

// 支付方式常量
const (
	PaymentMethodCOD = "cod"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 队列任务类型常量
const (
	// TaskConversionDeliver 服务端转化事件补发任务
	TaskConversionDeliver = "conversion:deliver"
)

// 地点检索类型常量
const (
	LocationTypeBarangay = "barangay"
	LocationTypeCity     = "city"
	LocationTypeProvince = "province"
)
