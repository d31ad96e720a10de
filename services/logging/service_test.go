package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewService(t *testing.T) {
	t.Run("json to stdout", func(t *testing.T) {
		service, err := NewService(Config{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service.Logger())
	})

	t.Run("console format", func(t *testing.T) {
		service, err := NewService(Config{Level: Debug, Format: "console", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service.Logger())
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "confadmin.log")

		service, err := NewService(Config{Level: Warn, Format: "json", OutputPath: logFile})
		require.NoError(t, err)

		service.Warn("invitation delivery slow")
		_ = service.Sync()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})
}

func TestService_Levels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	service := FromZap(zap.New(core))

	service.Debug("debug message")
	service.Info("info message", zap.String("email", "a@x.com"))
	service.Warn("warn message")
	service.Error("error message")
	service.Infof("created %d invitations", 3)

	logs := recorded.TakeAll()
	require.Len(t, logs, 5)
	assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	assert.Equal(t, zapcore.InfoLevel, logs[1].Level)
	assert.Equal(t, "a@x.com", logs[1].ContextMap()["email"])
	assert.Equal(t, zapcore.WarnLevel, logs[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs[3].Level)
	assert.Equal(t, "created 3 invitations", logs[4].Message)
}

func TestService_Named(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	service := FromZap(zap.New(core)).Named("invitation")

	service.Info("hello")

	logs := recorded.TakeAll()
	require.Len(t, logs, 1)
	assert.Equal(t, "invitation", logs[0].LoggerName)
}

func TestService_NilSafety(t *testing.T) {
	var service *Service

	assert.NotPanics(t, func() {
		service.Debug("test")
		service.Info("test")
		service.Warn("test")
		service.Error("test")
		service.Infof("test %s", "value")
		service.Errorf("test %s", "value")
		_ = service.Named("x")
		_ = service.Sync()
	})
	assert.Nil(t, service.Logger())
}

func TestRequestLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	service := FromZap(zap.New(core))

	e := echo.New()
	e.Use(RequestLogger(service, "/metrics"))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })
	e.GET("/boom", func(c echo.Context) error { return c.NoContent(http.StatusInternalServerError) })
	e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/ok", "/missing", "/boom", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	logs := recorded.TakeAll()
	require.Len(t, logs, 3)
	assert.Equal(t, "request", logs[0].Message)
	assert.Equal(t, "client error", logs[1].Message)
	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
	assert.Equal(t, "server error", logs[2].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[2].Level)
}

func TestRequestLogger_RedactsInvitationToken(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	service := FromZap(zap.New(core))

	e := echo.New()
	e.Use(RequestLogger(service))
	e.GET("/signup", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signup?token=secret-token&lang=en", nil))

	logs := recorded.TakeAll()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "/signup?lang=en&token=REDACTED", fields["uri"])
	assert.Equal(t, "/signup", fields["route"])
	assert.NotContains(t, fields["uri"], "secret-token")
}

func TestRedactURI(t *testing.T) {
	assert.Equal(t, "/dashboard", redactURI("/dashboard"))
	assert.Equal(t, "/?callbackURL=%2Fdashboard", redactURI("/?callbackURL=%2Fdashboard"))
	assert.Equal(t, "/signup?token=REDACTED", redactURI("/signup?token=abc"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zapcore.Level
	}{
		{Debug, zapcore.DebugLevel},
		{Info, zapcore.InfoLevel},
		{Warn, zapcore.WarnLevel},
		{Error, zapcore.ErrorLevel},
		{LogLevel("unknown"), zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
