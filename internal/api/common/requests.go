package common

// CheckImageRequest asks for a targeted check of one image on one host
type CheckImageRequest struct {
	// Required: numeric ID of the configured host container
	ContainerID string `json:"container_id" validate:"required"`

	// Required: image reference as `docker ps` would print it
	Image string `json:"image" validate:"required"`
}
