package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) CreateInvoiceFromVehicleSale(c *gin.Context) {
	var req invoicedomain.VehicleSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invoiceSvc.CreateFromVehicleSale(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) ListInvoices(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	createdFrom, createdTo, err := timeRange(c, "created")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	dueFrom, dueTo, err := timeRange(c, "due")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Search:      strings.TrimSpace(c.Query("search")),
		Status:      strings.TrimSpace(c.Query("status")),
		CustomerID:  strings.TrimSpace(c.Query("customer_id")),
		VehicleID:   strings.TrimSpace(c.Query("vehicle_id")),
		Currency:    strings.TrimSpace(c.Query("currency")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
		DueFrom:     dueFrom,
		DueTo:       dueTo,
		Page:        page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Invoices, resp.Pagination)
}

func (s *Server) ListOverdueInvoices(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.ListOverdue(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Invoices, resp.Pagination)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) GetNextInvoiceNumber(c *gin.Context) {
	respondOK(c, gin.H{"invoice_number": s.invoiceSvc.GenerateInvoiceNumber(c.Request.Context())})
}

func (s *Server) GetInvoiceStatistics(c *gin.Context) {
	from, to, err := timeRange(c, "date")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.GetStatistics(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req invoicedomain.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) SendInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Send(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, Result{Success: true})
}
