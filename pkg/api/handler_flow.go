package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatflow-io/chatflow/pkg/services"
)

// listFlowsHandler handles GET /flow/list.
func (s *Server) listFlowsHandler(c *gin.Context) {
	flows, err := s.flows.ListFlows(c.Request.Context(), currentUser(c))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	summaries := make([]FlowSummary, 0, len(flows))
	for i := range flows {
		summaries = append(summaries, toFlowSummary(&flows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"flows": summaries})
}

// flowDetailHandler handles GET /flow/detail/:flow_id. Published and
// stopped flows carry per-node transaction counts.
func (s *Server) flowDetailHandler(c *gin.Context) {
	flow, err := s.flows.GetFlowDetail(c.Request.Context(), currentUser(c), c.Param("flow_id"))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

// createFlowHandler handles POST /flow.
func (s *Server) createFlowHandler(c *gin.Context) {
	var req SaveFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow, err := s.flows.CreateFlow(c.Request.Context(), currentUser(c), services.SaveFlowInput{
		BrandID:     req.BrandID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flow)
}

// updateFlowHandler handles PUT /flow/:flow_id.
func (s *Server) updateFlowHandler(c *gin.Context) {
	var req SaveFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow, err := s.flows.UpdateFlow(c.Request.Context(), currentUser(c), c.Param("flow_id"), services.SaveFlowInput{
		BrandID:     req.BrandID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

// flowStatusHandler handles POST /flow/status/:flow_id.
func (s *Server) flowStatusHandler(c *gin.Context) {
	var req FlowStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flow, err := s.flows.UpdateStatus(c.Request.Context(), currentUser(c), c.Param("flow_id"), req.Status)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": flow.ID, "status": flow.Status})
}

// deleteFlowHandler handles DELETE /flow/:flow_id.
func (s *Server) deleteFlowHandler(c *gin.Context) {
	if err := s.flows.DeleteFlow(c.Request.Context(), currentUser(c), c.Param("flow_id")); err != nil {
		mapServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
