package hosts

import (
	"github.com/labstack/echo/v4"

	"github.com/pvemon/pvemon/internal/api/common"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/response"
)

// Handler handles host inventory HTTP requests
type Handler struct {
	hosts []config.HostConfig
}

// NewHandler creates a new hosts handler over the configured inventory
func NewHandler(hosts []config.HostConfig) *Handler {
	return &Handler{hosts: hosts}
}

// GetHosts handles GET /hosts
func (h *Handler) GetHosts(c echo.Context) error {
	list := make([]common.HostResponse, 0, len(h.hosts))
	for _, host := range h.hosts {
		list = append(list, toHostResponse(host))
	}

	return response.OK(c, "Hosts retrieved", common.HostListResponse{
		Hosts: list,
		Total: len(list),
	})
}

// GetHost handles GET /hosts/:id
func (h *Handler) GetHost(c echo.Context) error {
	id := c.Param("id")
	for _, host := range h.hosts {
		if host.ID == id {
			return response.OK(c, "Host retrieved", toHostResponse(host))
		}
	}
	return response.NotFound(c, "Host not configured: "+id)
}

func toHostResponse(host config.HostConfig) common.HostResponse {
	return common.HostResponse{
		ID:       host.ID,
		Name:     host.Name,
		Type:     host.Type,
		Checkers: host.Checkers,
	}
}
