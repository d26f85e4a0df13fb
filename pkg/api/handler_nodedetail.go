package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatflow-io/chatflow/pkg/services"
)

// listNodeDetailsHandler handles GET /node-details.
func (s *Server) listNodeDetailsHandler(c *gin.Context) {
	details, err := s.details.List(c.Request.Context())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_details": details})
}

// nodeDetailsByCategoryHandler handles GET /node-details/category/:category.
func (s *Server) nodeDetailsByCategoryHandler(c *gin.Context) {
	details, err := s.details.ListByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_details": details})
}

// createNodeDetailHandler handles POST /node-details.
func (s *Server) createNodeDetailHandler(c *gin.Context) {
	var req CreateNodeDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	detail, err := s.details.Create(c.Request.Context(), services.CreateNodeDetailInput{
		Type:              req.Type,
		Category:          req.Category,
		Title:             req.Title,
		Description:       req.Description,
		UserInputRequired: req.UserInputRequired,
		Fields:            req.Fields,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}
