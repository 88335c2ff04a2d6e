package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"burger-house/internal/delivery"
	"burger-house/internal/domain"
)

// actorFrom reads the caller identity forwarded by the gateway. The engine
// trusts these headers; authentication happens upstream.
func actorFrom(c *gin.Context) domain.Actor {
	a := domain.Actor{
		ID:   c.GetHeader("X-Actor-Id"),
		Role: domain.Role(c.GetHeader("X-Actor-Role")),
	}
	if a.ID == "" {
		a.ID = "anonimo"
	}
	if a.Role == "" {
		a.Role = domain.RoleCliente
	}
	return a
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

type createOrderReq struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Address       string `json:"address"`
	DeliveryKind  string `json:"delivery_kind"`
	Discount      string `json:"discount"`
	Burgers       []struct {
		Name          string  `json:"name"`
		Quantity      int64   `json:"quantity"`
		IngredientIDs []int64 `json:"ingredient_ids"`
	} `json:"burgers"`
	Items []struct {
		SKUID    int64 `json:"sku_id"`
		Quantity int64 `json:"quantity"`
	} `json:"items"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	discount := decimal.Zero
	if req.Discount != "" {
		var err error
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discount"})
			return
		}
	}
	cart := domain.Cart{
		DeliveryKind: domain.DeliveryKind(req.DeliveryKind),
		Discount:     discount,
	}
	for _, b := range req.Burgers {
		cart.Burgers = append(cart.Burgers, domain.CartBurger{
			Name: b.Name, Quantity: b.Quantity, IngredientIDs: b.IngredientIDs,
		})
	}
	for _, it := range req.Items {
		cart.Items = append(cart.Items, domain.CartItem{SKUID: it.SKUID, Quantity: it.Quantity})
	}
	cust := domain.Customer{Name: req.CustomerName, Phone: req.CustomerPhone, Address: req.Address}

	o, err := s.builder.CreateOrder(c.Request.Context(), cart, cust, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.builder.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) listOrders(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	out, err := s.builder.ListActive(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

type statusReq struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (s *Server) setOrderStatus(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.fsm.Transition(c.Request.Context(), id, domain.OrderStatus(req.Status), actorFrom(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	o, err := s.fsm.Transition(c.Request.Context(), id, domain.StatusCancelado, actorFrom(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) dispatchDelivery(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Courier string `json:"courier"`
	}
	_ = c.ShouldBindJSON(&req)

	d, err := s.tracker.Dispatch(c.Request.Context(), id, req.Courier, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (s *Server) trackDelivery(c *gin.Context) {
	view, err := s.tracker.Track(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": view.Delivery, "samples": view.Samples})
}

type locationReq struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Speed     *float64 `json:"speed"`
	Heading   *float64 `json:"heading"`
}

func (s *Server) reportLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := s.tracker.ReportLocation(c.Request.Context(), c.Param("token"), delivery.LocationInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Accuracy:  req.Accuracy,
		Speed:     req.Speed,
		Heading:   req.Heading,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) setDeliveryStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := s.tracker.SetStatus(c.Request.Context(), c.Param("token"), domain.DeliveryStatus(req.Status), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) listStock(c *gin.Context) {
	onlyActive := c.Query("active") != "false"
	skus, err := s.skus.List(c.Request.Context(), onlyActive)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skus": skus})
}

func (s *Server) deactivateSKU(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.skus.Deactivate(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type stockReq struct {
	Quantity   int64  `json:"quantity"`
	NewBalance int64  `json:"new_balance"`
	Reason     string `json:"reason"`
}

func (s *Server) receiveStock(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req stockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.ledger.Receive(c.Request.Context(), id, req.Quantity, req.Reason, actorFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) adjustStock(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req stockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.ledger.Adjust(c.Request.Context(), id, req.NewBalance, req.Reason, actorFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) recordLoss(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req stockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.ledger.RecordLoss(c.Request.Context(), id, req.Quantity, req.Reason, actorFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) listMovements(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ms, err := s.ledger.Movements(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": ms})
}

type paymentWebhookReq struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// paymentWebhook applies the gateway decision: "paid" stamps the payment,
// anything else cancels the order through the regular cancellation path.
func (s *Server) paymentWebhook(c *gin.Context) {
	var req paymentWebhookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OrderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order_id"})
		return
	}
	actor := domain.Actor{ID: "gateway", Role: domain.RoleGateway}
	o, err := s.fsm.SetPaymentStatus(c.Request.Context(), req.OrderID, req.Status == "paid", actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type subscribeReq struct {
	Endpoint string `json:"endpoint"`
	OrderID  *int64 `json:"order_id"`
}

func (s *Server) subscribePush(c *gin.Context) {
	var req subscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	sub := &domain.PushSubscription{Endpoint: req.Endpoint, OrderID: req.OrderID}
	if err := s.subs.Save(c.Request.Context(), sub); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}
