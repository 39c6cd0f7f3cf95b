package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	vehicledomain "github.com/smallbiznis/autotrade/internal/vehicle/domain"
)

func (s *Server) CreateVehicle(c *gin.Context) {
	var req vehicledomain.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.vehicleSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) ListVehicles(c *gin.Context) {
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
	yearFrom, err := parseOptionalInt(c.Query("year_from"))
	if err != nil {
		AbortWithError(c, invalidQueryError("year_from"))
		return
	}
	yearTo, err := parseOptionalInt(c.Query("year_to"))
	if err != nil {
		AbortWithError(c, invalidQueryError("year_to"))
		return
	}

	resp, err := s.vehicleSvc.List(c.Request.Context(), vehicledomain.ListVehicleRequest{
		Search:      strings.TrimSpace(c.Query("search")),
		Status:      strings.TrimSpace(c.Query("status")),
		Make:        strings.TrimSpace(c.Query("make")),
		YearFrom:    yearFrom,
		YearTo:      yearTo,
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
		Page:        page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Vehicles, resp.Pagination)
}

func (s *Server) GetVehicleByID(c *gin.Context) {
	resp, err := s.vehicleSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) UpdateVehicle(c *gin.Context) {
	var req vehicledomain.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.vehicleSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) DeleteVehicle(c *gin.Context) {
	if err := s.vehicleSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, Result{Success: true})
}
