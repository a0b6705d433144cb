package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/eshop-ordering/pkg/auth"
	"github.com/ghuser/eshop-ordering/pkg/errhttp"
	"github.com/ghuser/eshop-ordering/pkg/httpx"
	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	pkgvalidator "github.com/ghuser/eshop-ordering/pkg/validator"
	appsvcs "github.com/ghuser/eshop-ordering/services/ordering/application/services"
)

// CreateOrderRequest is the request body for POST /orders.
type CreateOrderRequest struct {
	Street  string `json:"street"   validate:"required,max=200" example:"15703 NE 61st Ct"`
	City    string `json:"city"     validate:"required,max=100" example:"Redmond"`
	State   string `json:"state"    validate:"required,max=100" example:"WA"`
	Country string `json:"country"  validate:"required,max=100" example:"U.S."`
	ZipCode string `json:"zip_code" validate:"required,max=20"  example:"98052"`

	CardTypeID         int       `json:"card_type_id"         validate:"required,gt=0,lte=2147483647" example:"1"`
	CardNumber         string    `json:"card_number"          validate:"required,numeric,min=12,max=19" example:"4012888888881881"`
	CardHolderName     string    `json:"card_holder_name"     validate:"required,max=200"             example:"Alice Smith"`
	CardSecurityNumber string    `json:"card_security_number" validate:"required,numeric,min=3,max=4"  example:"535"`
	CardExpiration     time.Time `json:"card_expiration"      validate:"required"                     example:"2030-12-31T00:00:00Z"`

	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
} // @name CreateOrderRequest

// OrderItemRequest is one basket line of a CreateOrderRequest.
type OrderItemRequest struct {
	ProductID   int             `json:"product_id"   validate:"required,gt=0,lte=2147483647" example:"1"`
	ProductName string          `json:"product_name" validate:"required,max=200" example:".NET Bot Black Hoodie"`
	UnitPrice   decimal.Decimal `json:"unit_price"   validate:"gte=0"            swaggertype:"string" example:"19.50"`
	Discount    decimal.Decimal `json:"discount"     validate:"gte=0"            swaggertype:"string" example:"0"`
	PictureURL  string          `json:"picture_url"  validate:"omitempty,url"    example:"http://localhost:5101/api/v1/catalog/items/1/pic/"`
	Units       int             `json:"units"        validate:"gte=1,lte=2147483647" example:"2"`
} // @name OrderItemRequest

// CreateOrderResponse is returned for the first delivery and every duplicate.
type CreateOrderResponse struct {
	Success bool      `json:"success"  example:"true"`
	OrderID uuid.UUID `json:"order_id" example:"123e4567-e89b-12d3-a456-426614174000"`
} // @name CreateOrderResponse

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error" example:"order validation failed: invalid address"`
} // @name ErrorResponse

// PostOrderHandler handles POST /orders requests.
type PostOrderHandler struct {
	svc          *appsvcs.Services
	isProduction bool
}

// NewPostOrderHandler returns a PostOrderHandler backed by the given services.
func NewPostOrderHandler(svc *appsvcs.Services, isProduction bool) *PostOrderHandler {
	return &PostOrderHandler{svc: svc, isProduction: isProduction}
}

// Execute places an order for the authenticated buyer.
//
//	@Summary		Create order
//	@Description	Places an order from the buyer's basket. Requests are deduplicated by the x-requestid header; a repeated request id returns the first result.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			x-requestid	header		string				true	"Client-generated request id (UUID)"
//	@Param			request		body		CreateOrderRequest	true	"Order creation request"
//	@Success		201			{object}	CreateOrderResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Failure		422			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/orders [post]
func (h *PostOrderHandler) Execute(w http.ResponseWriter, r *http.Request) {
	buyer, err := auth.BuyerFromCtx(r.Context())
	if err != nil {
		errhttp.WriteError(w, err, h.isProduction)
		return
	}

	requestID, err := idempotency.ParseRequestID(r.Header.Get(httpx.RequestIDHeader))
	if err != nil {
		errhttp.WriteError(w, err, h.isProduction)
		return
	}

	req, ok := pkgvalidator.ValidateRequest[CreateOrderRequest](w, r)
	if !ok {
		return
	}

	res, err := h.svc.Dispatch.CreateOrder(r.Context(), requestID, req.toCommand(buyer))
	if err != nil {
		errhttp.WriteError(w, err, h.isProduction)
		return
	}

	httpx.JSON(w, http.StatusCreated, CreateOrderResponse{
		Success: res.Success,
		OrderID: res.OrderID,
	})
}

func (req *CreateOrderRequest) toCommand(buyer auth.Buyer) appsvcs.CreateOrderCommand {
	items := make([]appsvcs.OrderItemDTO, len(req.Items))
	for i, it := range req.Items {
		items[i] = appsvcs.OrderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
			PictureURL:  it.PictureURL,
			Units:       it.Units,
		}
	}
	return appsvcs.CreateOrderCommand{
		UserID:             buyer.ID,
		UserName:           buyer.Name,
		Street:             req.Street,
		City:               req.City,
		State:              req.State,
		Country:            req.Country,
		ZipCode:            req.ZipCode,
		CardTypeID:         req.CardTypeID,
		CardNumber:         req.CardNumber,
		CardHolderName:     req.CardHolderName,
		CardSecurityNumber: req.CardSecurityNumber,
		CardExpiration:     req.CardExpiration,
		Items:              items,
	}
}
