package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
)

// replayResponse is the JSON form of recovery.ReplayReport.
type replayResponse struct {
	Target    model.NodeID `json:"target"`
	Applied   int          `json:"applied"`
	Remaining int          `json:"remaining"`
	Skipped   bool         `json:"skipped,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func toReplayResponses(reports []recovery.ReplayReport) []replayResponse {
	out := make([]replayResponse, len(reports))
	for i, r := range reports {
		out[i] = replayResponse{
			Target:    r.Target,
			Applied:   r.Applied,
			Remaining: r.Remaining,
			Skipped:   r.Skipped,
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

func (s *Server) handleRecoveryList(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Queue().Snapshot())
}

func (s *Server) handleRecoveryReplay(c *gin.Context) {
	reports, err := s.replayer.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReplayResponses(reports))
}

func (s *Server) handleNodes(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Health(c.Request.Context()))
}

func (s *Server) handleVerify(c *gin.Context) {
	v, err := s.engine.Verify(c.Request.Context(), c.Param("tconst"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
