package check_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/pvemon/pvemon/internal/api/check"
	"github.com/pvemon/pvemon/pkg/config"
	"github.com/pvemon/pvemon/pkg/monitor"
	"github.com/pvemon/pvemon/pkg/response"
)

// mockRunner implements the Runner interface for testing
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) TryRun(ctx context.Context) (*monitor.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*monitor.Report), args.Error(1)
}

func (m *mockRunner) ResolveImage(ctx context.Context, containerID, rawImage string) (monitor.ImageUpdateResult, error) {
	args := m.Called(ctx, containerID, rawImage)
	return args.Get(0).(monitor.ImageUpdateResult), args.Error(1)
}

// mockPusher implements the Pusher interface for testing
type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) PushReport(ctx context.Context, report *monitor.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

var _ = Describe("Check Handler", func() {
	var (
		e      *echo.Echo
		runner *mockRunner
		pusher *mockPusher
		hosts  []config.HostConfig
	)

	BeforeEach(func() {
		e = echo.New()
		e.Validator = &testValidator{validator: validator.New()}
		runner = new(mockRunner)
		pusher = new(mockPusher)
		hosts = []config.HostConfig{
			{ID: "105", Name: "app", Type: "LXC", Checkers: []string{config.CheckerDocker}},
		}
	})

	invoke := func(fn echo.HandlerFunc, target, body string) (*httptest.ResponseRecorder, response.Response) {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(http.MethodPost, target, nil)
		} else {
			req = httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		Expect(fn(c)).To(Succeed())

		var envelope response.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &envelope)).To(Succeed())
		return rec, envelope
	}

	payload := func(envelope response.Response) map[string]interface{} {
		data, ok := envelope.Data.(map[string]interface{})
		Expect(ok).To(BeTrue(), "Response data should be an object")
		return data
	}

	Describe("RunCheck", func() {
		report := &monitor.Report{
			RunID: "run-1",
			Containers: []monitor.ContainerReport{
				{ContainerID: "105", ContainerName: "app", HostType: "LXC"},
			},
		}

		It("should run a check and return the report", func() {
			runner.On("TryRun", mock.Anything).Return(report, nil)
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.RunCheck, "/api/v1/check", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(envelope.Success).To(BeTrue())

			data := payload(envelope)
			Expect(data["report"].(map[string]interface{})["run_id"]).To(Equal("run-1"))
			Expect(data["pushed"]).To(BeFalse())
			Expect(pusher.Calls).To(BeEmpty(), "No push was requested")
			runner.AssertExpectations(GinkgoT())
		})

		It("should return 409 while another run holds the guard", func() {
			runner.On("TryRun", mock.Anything).Return(nil, monitor.ErrRunInProgress)
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.RunCheck, "/api/v1/check", "")

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(envelope.Success).To(BeFalse())
			Expect(envelope.Error).To(Equal("An update check is already running"))
		})

		It("should push the report when requested", func() {
			runner.On("TryRun", mock.Anything).Return(report, nil)
			pusher.On("PushReport", mock.Anything, report).Return(nil)
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.RunCheck, "/api/v1/check?push=true", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			data := payload(envelope)
			Expect(data["pushed"]).To(BeTrue())
			Expect(data).NotTo(HaveKey("push_error"))
			pusher.AssertExpectations(GinkgoT())
		})

		It("should reject push when InfluxDB is not configured", func() {
			handler := check.NewHandler(runner, nil, hosts, zap.NewNop())

			rec, envelope := invoke(handler.RunCheck, "/api/v1/check?push=true", "")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(envelope.Error).To(Equal("InfluxDB is not configured"))
			Expect(runner.Calls).To(BeEmpty(), "The check should not start without a working sink")
		})

		It("should keep the report when the push fails", func() {
			runner.On("TryRun", mock.Anything).Return(report, nil)
			pusher.On("PushReport", mock.Anything, report).Return(errors.New("influxdb: 401 Unauthorized"))
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.RunCheck, "/api/v1/check?push=true", "")

			Expect(rec.Code).To(Equal(http.StatusOK), "A failed push should not discard the report")
			data := payload(envelope)
			Expect(data["pushed"]).To(BeFalse())
			Expect(data["push_error"]).To(Equal("influxdb: 401 Unauthorized"))
			Expect(data["report"].(map[string]interface{})["run_id"]).To(Equal("run-1"))
		})
	})

	Describe("CheckImage", func() {
		It("should resolve a single image", func() {
			result := monitor.ImageUpdateResult{
				Type:                 config.CheckerDocker,
				LocalCurrentDigest:   "sha256:aaa",
				LocalCurrentVersion:  "1.27.0",
				RemoteCurrentDigest:  "sha256:aaa",
				RemoteCurrentVersion: "1.27.0",
				RemoteLatestDigest:   "sha256:bbb",
				RemoteLatestVersion:  "1.27.1",
				UpdateAvailable:      true,
			}
			runner.On("ResolveImage", mock.Anything, "105", "nginx:1.27.0").Return(result, nil)
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.CheckImage, "/api/v1/check/image",
				`{"container_id":"105","image":"nginx:1.27.0"}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			data := payload(envelope)
			Expect(data["container_id"]).To(Equal("105"))
			Expect(data["image"]).To(Equal("nginx:1.27.0"))
			Expect(data["result"].(map[string]interface{})["update_available"]).To(BeTrue())
			runner.AssertExpectations(GinkgoT())
		})

		It("should reject an unknown host", func() {
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.CheckImage, "/api/v1/check/image",
				`{"container_id":"999","image":"nginx:1.27.0"}`)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(envelope.Error).To(Equal("Host not configured: 999"))
			Expect(runner.Calls).To(BeEmpty())
		})

		It("should reject a malformed image reference", func() {
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.CheckImage, "/api/v1/check/image",
				`{"container_id":"105","image":"UPPER/Case:1.0"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(envelope.Error).To(ContainSubstring("Invalid image reference"))
			Expect(runner.Calls).To(BeEmpty())
		})

		It("should reject an incomplete request", func() {
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.CheckImage, "/api/v1/check/image",
				`{"container_id":"105"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(envelope.Success).To(BeFalse())
		})

		It("should return 409 while a run is active", func() {
			runner.On("ResolveImage", mock.Anything, "105", "nginx:1.27.0").
				Return(monitor.ImageUpdateResult{}, monitor.ErrRunInProgress)
			handler := check.NewHandler(runner, pusher, hosts, zap.NewNop())

			rec, envelope := invoke(handler.CheckImage, "/api/v1/check/image",
				`{"container_id":"105","image":"nginx:1.27.0"}`)

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(envelope.Error).To(Equal("An update check is already running"))
		})
	})
})
