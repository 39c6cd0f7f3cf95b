package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/autotrade/internal/payment/domain"
)

func (s *Server) CreatePayment(c *gin.Context) {
	var req paymentdomain.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.CreatedBy = actor(c, req.CreatedBy)

	resp, err := s.paymentSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) CreateQuickPayment(c *gin.Context) {
	var req paymentdomain.QuickPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.InvoiceID = c.Param("id")
	req.CreatedBy = actor(c, req.CreatedBy)

	resp, err := s.paymentSvc.CreateQuickPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) ProcessFullPayment(c *gin.Context) {
	var req paymentdomain.FullPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.InvoiceID = c.Param("id")
	req.CreatedBy = actor(c, req.CreatedBy)

	resp, err := s.paymentSvc.ProcessFullPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) CreateRefund(c *gin.Context) {
	var req paymentdomain.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.PaymentID = c.Param("id")
	if user := actor(c, &req.UserID); user != nil {
		req.UserID = *user
	}

	resp, err := s.paymentSvc.CreateRefund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) GetInvoicePaymentSummary(c *gin.Context) {
	resp, err := s.paymentSvc.GetInvoicePaymentSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) ListPayments(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paymentFrom, paymentTo, err := timeRange(c, "payment")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	createdFrom, createdTo, err := timeRange(c, "created")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentRequest{
		Search:      strings.TrimSpace(c.Query("search")),
		InvoiceID:   strings.TrimSpace(c.Query("invoice_id")),
		Method:      strings.TrimSpace(c.Query("payment_method")),
		Currency:    strings.TrimSpace(c.Query("currency")),
		PaymentFrom: paymentFrom,
		PaymentTo:   paymentTo,
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
		Page:        page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Payments, resp.Pagination)
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	resp, err := s.paymentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) GetPaymentStatistics(c *gin.Context) {
	from, to, err := timeRange(c, "date")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.GetStatistics(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) UpdatePayment(c *gin.Context) {
	var req paymentdomain.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.paymentSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) DeletePayment(c *gin.Context) {
	if err := s.paymentSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, Result{Success: true})
}
