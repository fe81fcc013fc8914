package tuition

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melisa-sener/tuition-payment-api/internal/auth"
	"github.com/melisa-sener/tuition-payment-api/internal/auth/token"
	"github.com/melisa-sener/tuition-payment-api/internal/observability"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgMissingToken       = "Missing Bearer token"
	msgInvalidToken       = "Invalid or expired token"
	msgWrongRole          = "Forbidden: wrong role"
	msgStudentNotFound    = "Student not found"
	msgRecordNotFound     = "Tuition record not found"
	msgInternalError      = "Internal server error"
)

// Server is the tuition service HTTP API.
type Server struct {
	router      *gin.Engine
	store       *Store
	tokens      *token.Service
	credentials auth.CredentialStore
	logger      observability.Logger
}

// ServerOption is a functional option for the server.
type ServerOption func(*Server)

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger observability.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the tuition service over the given store,
// token service and credential store.
func NewServer(store *Store, tokens *token.Service, credentials auth.CredentialStore, opts ...ServerOption) *Server {
	s := &Server{
		store:       store,
		tokens:      tokens,
		credentials: credentials,
		logger:      observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	s.router = router
	s.setupRoutes()

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server on the given address.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	api.GET("/health", s.handleHealth)
	api.POST("/auth/login", s.handleLogin)

	api.GET("/tuition/unpaid", s.requireRole(auth.RoleAdmin), s.handleUnpaid)
	api.GET("/tuition/:studentNo", s.handleStudentLookup)
	api.GET("/bank/tuition/:studentNo", s.requireRole(auth.RoleBank), s.handleStudentLookup)
	api.POST("/tuition", s.requireRole(auth.RoleAdmin), s.handleCreate)
	api.POST("/tuition/batch", s.requireRole(auth.RoleAdmin), s.handleCreateBatch)
	api.POST("/tuition/pay", s.handlePay)
}

// requireRole verifies the bearer token and checks its role claim.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	extractor := token.NewHeaderExtractor("", "")

	return func(c *gin.Context) {
		bearer, err := extractor.Extract(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgMissingToken})
			return
		}

		claims, err := s.tokens.Verify(bearer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgInvalidToken})
			return
		}

		if !claims.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": msgWrongRole})
			return
		}

		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "Tuition API is running")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgInvalidCredentials})
		return
	}

	user, err := s.credentials.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgInvalidCredentials})
		return
	}

	tok, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		s.logger.Error("token issue failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tok, "role": user.Role})
}

// unpaidRow is one entry of the unpaid listing.
type unpaidRow struct {
	StudentNo    string  `json:"studentNo"`
	Term         string  `json:"term"`
	TuitionTotal float64 `json:"tuitionTotal"`
	AmountPaid   float64 `json:"amountPaid"`
}

func (s *Server) handleUnpaid(c *gin.Context) {
	term := c.Query("term")
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "term is required"})
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}

	totalUnpaid, err := s.store.CountUnpaid(c.Request.Context(), term)
	if err != nil {
		s.logger.Error("unpaid count failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	records, err := s.store.ListUnpaid(c.Request.Context(), term, limit, offset)
	if err != nil {
		s.logger.Error("unpaid listing failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	results := make([]unpaidRow, 0, len(records))
	for _, r := range records {
		results = append(results, unpaidRow{
			StudentNo:    r.StudentNo,
			Term:         r.Term,
			TuitionTotal: r.TuitionTotal,
			AmountPaid:   r.AmountPaid,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"term":        term,
		"totalUnpaid": totalUnpaid,
		"page":        page,
		"limit":       limit,
		"results":     results,
	})
}

func (s *Server) handleStudentLookup(c *gin.Context) {
	studentNo := c.Param("studentNo")

	record, err := s.store.LatestByStudent(c.Request.Context(), studentNo)
	if errors.Is(err, ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": msgStudentNotFound})
		return
	}
	if err != nil {
		s.logger.Error("student lookup failed",
			observability.String("student_no", studentNo),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"studentNo":    record.StudentNo,
		"term":         record.Term,
		"tuitionTotal": record.TuitionTotal,
		"balance":      record.Balance(),
	})
}

type createRequest struct {
	StudentNo    string  `json:"studentNo"`
	Term         string  `json:"term"`
	TuitionTotal float64 `json:"tuitionTotal"`
}

func (r createRequest) valid() bool {
	return r.StudentNo != "" && r.Term != "" && r.TuitionTotal > 0
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing fields"})
		return
	}

	record, err := s.store.Insert(c.Request.Context(), req.StudentNo, req.Term, req.TuitionTotal)
	if err != nil {
		s.logger.Error("tuition insert failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Tuition record created",
		"data":    record,
	})
}

// batchError describes one rejected batch item.
type batchError struct {
	Index   int           `json:"index"`
	Message string        `json:"message"`
	Item    createRequest `json:"item"`
}

func (s *Server) handleCreateBatch(c *gin.Context) {
	var items []createRequest
	if err := c.ShouldBindJSON(&items); err != nil || len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Request body must be a non-empty array"})
		return
	}

	created := make([]*Record, 0, len(items))
	batchErrors := make([]batchError, 0)

	for i, item := range items {
		if !item.valid() {
			batchErrors = append(batchErrors, batchError{Index: i, Message: "Missing fields", Item: item})
			continue
		}

		record, err := s.store.Insert(c.Request.Context(), item.StudentNo, item.Term, item.TuitionTotal)
		if err != nil {
			s.logger.Error("batch insert failed",
				observability.Int("index", i),
				observability.Error(err),
			)
			batchErrors = append(batchErrors, batchError{Index: i, Message: "DB insert error", Item: item})
			continue
		}

		created = append(created, record)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Batch processed",
		"createdCount": len(created),
		"errorCount":   len(batchErrors),
		"created":      created,
		"errors":       batchErrors,
	})
}

type payRequest struct {
	StudentNo string  `json:"studentNo"`
	Term      string  `json:"term"`
	Amount    float64 `json:"amount"`
}

func (s *Server) handlePay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StudentNo == "" || req.Term == "" || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "studentNo, term and positive amount are required"})
		return
	}

	record, err := s.store.Pay(c.Request.Context(), req.StudentNo, req.Term, req.Amount)
	if errors.Is(err, ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": msgRecordNotFound})
		return
	}
	if err != nil {
		s.logger.Error("payment failed",
			observability.String("student_no", req.StudentNo),
			observability.String("term", req.Term),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentStatus":    "Successful",
		"studentNo":        record.StudentNo,
		"term":             record.Term,
		"tuitionTotal":     record.TuitionTotal,
		"amountPaid":       record.AmountPaid,
		"remainingBalance": record.Balance(),
	})
}

// queryInt parses an integer query parameter, falling back to def for
// missing or unparsable values. Explicit non-negative values pass
// through, so limit=0 yields an empty page. Negatives fall back to def
// because SQLite treats a negative LIMIT as unlimited.
func queryInt(c *gin.Context, name string, def int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}
