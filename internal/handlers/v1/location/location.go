package location

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/spendiq-server/internal/location"
	"github.com/carson-networks/spendiq-server/internal/logging"
)

type reporter interface {
	Report(userID string, fix location.Fix)
	SetPermission(userID string, granted bool)
}

// PostLocationBody is a device position report. A permission change may come without
// coordinates.
type PostLocationBody struct {
	Latitude         *float64 `json:"latitude,omitempty" minimum:"-90" maximum:"90" doc:"Latitude in degrees"`
	Longitude        *float64 `json:"longitude,omitempty" minimum:"-180" maximum:"180" doc:"Longitude in degrees"`
	PermissionDenied bool     `json:"permissionDenied,omitempty" doc:"Location access was revoked on the device"`
	At               string   `json:"at,omitempty" doc:"RFC3339 time of the fix, defaults to now"`
}

type PostLocationInput struct {
	UserID string `path:"userId" minLength:"1" doc:"Owner of the device"`
	Body   PostLocationBody
}

type PostLocationOutput struct {
	Status int
}

// PostLocationHandler handles POST /v1/users/{userId}/location.
type PostLocationHandler struct {
	reporter reporter
}

func NewPostLocationHandler(r reporter) *PostLocationHandler {
	return &PostLocationHandler{reporter: r}
}

func (h *PostLocationHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-location",
		Method:        http.MethodPost,
		Path:          "/v1/users/{userId}/location",
		Summary:       "Report location",
		Description:   "Records the device's latest position or a change of location permission.",
		Tags:          []string{"Location"},
		DefaultStatus: http.StatusNoContent,
	}, h.handle)
}

func parsePostLocationInput(input *PostLocationInput) (location.Fix, error) {
	if input.Body.Latitude == nil || input.Body.Longitude == nil {
		return location.Fix{}, errors.New("latitude and longitude are required")
	}
	fix := location.Fix{Latitude: *input.Body.Latitude, Longitude: *input.Body.Longitude}
	if input.Body.At != "" {
		at, err := time.Parse(time.RFC3339, input.Body.At)
		if err != nil {
			return location.Fix{}, err
		}
		fix.At = at
	}
	return fix, nil
}

func (h *PostLocationHandler) handle(ctx context.Context, input *PostLocationInput) (*PostLocationOutput, error) {
	if logData := logging.GetLogData(ctx); logData != nil {
		logData.AddData("userId", input.UserID)
	}

	if input.Body.PermissionDenied {
		h.reporter.SetPermission(input.UserID, false)
		return &PostLocationOutput{Status: http.StatusNoContent}, nil
	}

	fix, err := parsePostLocationInput(input)
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid location", err)
	}

	h.reporter.SetPermission(input.UserID, true)
	h.reporter.Report(input.UserID, fix)
	return &PostLocationOutput{Status: http.StatusNoContent}, nil
}
