// Package gin exposes the settlement engine operations as a thin JSON
// gateway. It decodes requests, invokes the engine, and maps the engine's
// error codes onto HTTP statuses; it holds no business logic of its own.
package gin

import (
	"errors"
	"net/http"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	processor "github.com/solpayments/solana-payment-processor"
)

const requestIDHeader = "X-Request-Id"

// Gateway serves the engine over HTTP.
type Gateway struct {
	processor *processor.Processor
}

// NewGateway wraps an engine.
func NewGateway(p *processor.Processor) *Gateway {
	return &Gateway{processor: p}
}

// Router builds the gin engine with all routes mounted.
func (g *Gateway) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), requestID())
	router.POST("/merchants", g.registerMerchant)
	router.POST("/checkout", g.expressCheckout)
	router.POST("/checkout/chain", g.chainCheckout)
	router.POST("/subscriptions", g.subscribe)
	router.POST("/subscriptions/renew", g.renewSubscription)
	router.POST("/subscriptions/cancel", g.cancelSubscription)
	router.POST("/withdraw", g.withdraw)
	return router
}

// requestID tags every request so gateway logs can be tied back to engine
// failures.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps engine error codes onto HTTP statuses. Unknown errors are
// internal.
func statusFor(err error) int {
	var perr *processor.ProcessorError
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, processor.ErrAlreadyRegistered),
		errors.Is(err, processor.ErrDuplicateOrder),
		errors.Is(err, processor.ErrAlreadySubscribed),
		errors.Is(err, processor.ErrOrderAlreadyWithdrawn),
		errors.Is(err, processor.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, processor.ErrInsufficientFunds),
		errors.Is(err, processor.ErrNotFullyPaid):
		return http.StatusPaymentRequired
	case errors.Is(err, processor.ErrUnauthorized),
		errors.Is(err, processor.ErrInvalidAccountOwner),
		errors.Is(err, processor.ErrWithdrawalDuringTrial):
		return http.StatusForbidden
	case errors.Is(err, processor.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func abortWith(c *gin.Context, err error) {
	var perr *processor.ProcessorError
	if errors.As(err, &perr) {
		c.AbortWithStatusJSON(statusFor(err), errorResponse{Code: perr.Code, Message: err.Error()})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Code: "internal", Message: err.Error()})
}

func parseKey(c *gin.Context, field, value string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Code:    "invalid_identity",
			Message: field + " is not a valid base58 identity",
		})
		return solana.PublicKey{}, false
	}
	return key, true
}

func parseOptionalKey(c *gin.Context, field, value string) (*solana.PublicKey, bool) {
	if value == "" {
		return nil, true
	}
	key, ok := parseKey(c, field, value)
	if !ok {
		return nil, false
	}
	return &key, true
}

type registerMerchantRequest struct {
	Owner   string  `json:"owner" binding:"required"`
	Seed    string  `json:"seed"`
	FeeBps  *uint64 `json:"feeBps"`
	Data    string  `json:"data"`
	Sponsor string  `json:"sponsor"`
}

type registerMerchantResponse struct {
	Merchant string  `json:"merchant"`
	Owner    string  `json:"owner"`
	Sponsor  *string `json:"sponsor,omitempty"`
	FeeBps   uint64  `json:"feeBps"`
}

func (g *Gateway) registerMerchant(c *gin.Context) {
	var req registerMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	owner, ok := parseKey(c, "owner", req.Owner)
	if !ok {
		return
	}
	sponsor, ok := parseOptionalKey(c, "sponsor", req.Sponsor)
	if !ok {
		return
	}
	merchant, address, err := g.processor.RegisterMerchant(processor.RegisterMerchantParams{
		Owner:   owner,
		Seed:    req.Seed,
		FeeBps:  req.FeeBps,
		Data:    req.Data,
		Sponsor: sponsor,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	resp := registerMerchantResponse{
		Merchant: address.String(),
		Owner:    merchant.Owner.String(),
		FeeBps:   merchant.FeeBps,
	}
	if merchant.HasSponsor() {
		s := merchant.Sponsor.String()
		resp.Sponsor = &s
	}
	c.JSON(http.StatusCreated, resp)
}

type expressCheckoutRequest struct {
	Buyer        string `json:"buyer" binding:"required"`
	BuyerFunding string `json:"buyerFunding" binding:"required"`
	Merchant     string `json:"merchant" binding:"required"`
	Amount       uint64 `json:"amount"`
	OrderID      string `json:"orderId"`
	Secret       string `json:"secret"`
	Data         string `json:"data"`
}

type orderResponse struct {
	Order   string `json:"order"`
	Escrow  string `json:"escrow"`
	Status  string `json:"status"`
	Amount  uint64 `json:"amount"`
	OrderID string `json:"orderId"`
}

func orderStatusString(status uint8) string {
	switch processor.OrderStatus(status) {
	case processor.OrderPaid:
		return "paid"
	case processor.OrderWithdrawn:
		return "withdrawn"
	case processor.OrderCancelled:
		return "cancelled"
	default:
		return "uninitialized"
	}
}

func (g *Gateway) expressCheckout(c *gin.Context) {
	var req expressCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	buyer, ok := parseKey(c, "buyer", req.Buyer)
	if !ok {
		return
	}
	funding, ok := parseKey(c, "buyerFunding", req.BuyerFunding)
	if !ok {
		return
	}
	merchant, ok := parseKey(c, "merchant", req.Merchant)
	if !ok {
		return
	}
	order, address, err := g.processor.ExpressCheckout(processor.ExpressCheckoutParams{
		Buyer:        buyer,
		BuyerFunding: funding,
		Merchant:     merchant,
		Amount:       req.Amount,
		OrderID:      req.OrderID,
		Secret:       req.Secret,
		Data:         req.Data,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderResponse{
		Order:   address.String(),
		Escrow:  order.Escrow.String(),
		Status:  orderStatusString(order.Status),
		Amount:  order.ExpectedAmount,
		OrderID: order.OrderID,
	})
}

type chainCheckoutRequest struct {
	Buyer        string                `json:"buyer" binding:"required"`
	BuyerFunding string                `json:"buyerFunding" binding:"required"`
	Merchant     string                `json:"merchant" binding:"required"`
	Amount       uint64                `json:"amount"`
	Items        []processor.OrderItem `json:"items"`
	Data         string                `json:"data"`
}

func (g *Gateway) chainCheckout(c *gin.Context) {
	var req chainCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	buyer, ok := parseKey(c, "buyer", req.Buyer)
	if !ok {
		return
	}
	funding, ok := parseKey(c, "buyerFunding", req.BuyerFunding)
	if !ok {
		return
	}
	merchant, ok := parseKey(c, "merchant", req.Merchant)
	if !ok {
		return
	}
	order, address, err := g.processor.ChainCheckout(processor.ChainCheckoutParams{
		Buyer:        buyer,
		BuyerFunding: funding,
		Merchant:     merchant,
		Amount:       req.Amount,
		Items:        req.Items,
		Data:         req.Data,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderResponse{
		Order:   address.String(),
		Escrow:  order.Escrow.String(),
		Status:  orderStatusString(order.Status),
		Amount:  order.ExpectedAmount,
		OrderID: order.OrderID,
	})
}

type subscribeRequest struct {
	Payer    string `json:"payer" binding:"required"`
	Merchant string `json:"merchant" binding:"required"`
	Order    string `json:"order" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Data     string `json:"data"`
}

type subscriptionResponse struct {
	Subscription string `json:"subscription"`
	Name         string `json:"name"`
	PeriodStart  int64  `json:"periodStart"`
	PeriodEnd    int64  `json:"periodEnd"`
}

func (g *Gateway) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	payer, ok := parseKey(c, "payer", req.Payer)
	if !ok {
		return
	}
	merchant, ok := parseKey(c, "merchant", req.Merchant)
	if !ok {
		return
	}
	order, ok := parseKey(c, "order", req.Order)
	if !ok {
		return
	}
	subscription, address, err := g.processor.Subscribe(processor.SubscribeParams{
		Payer:    payer,
		Merchant: merchant,
		Order:    order,
		Name:     req.Name,
		Data:     req.Data,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, subscriptionResponse{
		Subscription: address.String(),
		Name:         subscription.Name,
		PeriodStart:  subscription.PeriodStart,
		PeriodEnd:    subscription.PeriodEnd,
	})
}

type renewSubscriptionRequest struct {
	Payer        string `json:"payer" binding:"required"`
	Merchant     string `json:"merchant" binding:"required"`
	Order        string `json:"order" binding:"required"`
	Subscription string `json:"subscription" binding:"required"`
	Quantity     int64  `json:"quantity"`
}

func (g *Gateway) renewSubscription(c *gin.Context) {
	var req renewSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	payer, ok := parseKey(c, "payer", req.Payer)
	if !ok {
		return
	}
	merchant, ok := parseKey(c, "merchant", req.Merchant)
	if !ok {
		return
	}
	order, ok := parseKey(c, "order", req.Order)
	if !ok {
		return
	}
	subscriptionAddr, ok := parseKey(c, "subscription", req.Subscription)
	if !ok {
		return
	}
	subscription, err := g.processor.RenewSubscription(processor.RenewSubscriptionParams{
		Payer:        payer,
		Merchant:     merchant,
		Order:        order,
		Subscription: subscriptionAddr,
		Quantity:     req.Quantity,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, subscriptionResponse{
		Subscription: subscriptionAddr.String(),
		Name:         subscription.Name,
		PeriodStart:  subscription.PeriodStart,
		PeriodEnd:    subscription.PeriodEnd,
	})
}

type cancelSubscriptionRequest struct {
	Payer             string `json:"payer" binding:"required"`
	Merchant          string `json:"merchant" binding:"required"`
	Order             string `json:"order" binding:"required"`
	Subscription      string `json:"subscription" binding:"required"`
	RefundDestination string `json:"refundDestination" binding:"required"`
}

func (g *Gateway) cancelSubscription(c *gin.Context) {
	var req cancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	payer, ok := parseKey(c, "payer", req.Payer)
	if !ok {
		return
	}
	merchant, ok := parseKey(c, "merchant", req.Merchant)
	if !ok {
		return
	}
	order, ok := parseKey(c, "order", req.Order)
	if !ok {
		return
	}
	subscription, ok := parseKey(c, "subscription", req.Subscription)
	if !ok {
		return
	}
	refund, ok := parseKey(c, "refundDestination", req.RefundDestination)
	if !ok {
		return
	}
	err := g.processor.CancelSubscription(processor.CancelSubscriptionParams{
		Payer:             payer,
		Merchant:          merchant,
		Order:             order,
		Subscription:      subscription,
		RefundDestination: refund,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type withdrawRequest struct {
	Caller              string `json:"caller" binding:"required"`
	Merchant            string `json:"merchant" binding:"required"`
	Order               string `json:"order" binding:"required"`
	MerchantDestination string `json:"merchantDestination" binding:"required"`
	PlatformDestination string `json:"platformDestination" binding:"required"`
	SponsorDestination  string `json:"sponsorDestination"`
	Subscription        string `json:"subscription"`
}

type withdrawResponse struct {
	PlatformFee   uint64 `json:"platformFee"`
	SponsorFee    uint64 `json:"sponsorFee"`
	MerchantShare uint64 `json:"merchantShare"`
}

func (g *Gateway) withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Message: err.Error()})
		return
	}
	caller, ok := parseKey(c, "caller", req.Caller)
	if !ok {
		return
	}
	merchant, ok := parseKey(c, "merchant", req.Merchant)
	if !ok {
		return
	}
	order, ok := parseKey(c, "order", req.Order)
	if !ok {
		return
	}
	merchantDest, ok := parseKey(c, "merchantDestination", req.MerchantDestination)
	if !ok {
		return
	}
	platformDest, ok := parseKey(c, "platformDestination", req.PlatformDestination)
	if !ok {
		return
	}
	params := processor.WithdrawParams{
		Caller:              caller,
		Merchant:            merchant,
		Order:               order,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	}
	if req.SponsorDestination != "" {
		sponsorDest, ok := parseKey(c, "sponsorDestination", req.SponsorDestination)
		if !ok {
			return
		}
		params.SponsorDestination = sponsorDest
	}
	subscription, ok := parseOptionalKey(c, "subscription", req.Subscription)
	if !ok {
		return
	}
	params.Subscription = subscription

	split, err := g.processor.Withdraw(params)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawResponse{
		PlatformFee:   split.PlatformFee,
		SponsorFee:    split.SponsorFee,
		MerchantShare: split.MerchantShare,
	})
}
