package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			log, err := NewLogger(level, false)
			require.NoError(t, err)
			require.Equal(t, level, log.GetLevel())
		})
	}

	t.Run("development encoder", func(t *testing.T) {
		log, err := NewLogger("debug", true)
		require.NoError(t, err)
		require.NotNil(t, log.SugaredLogger)
	})

	t.Run("invalid level", func(t *testing.T) {
		log, err := NewLogger("chatty", false)
		require.Error(t, err)
		require.Nil(t, log)
	})
}

func TestLogger_SetLevel(t *testing.T) {
	log, err := NewLogger("info", false)
	require.NoError(t, err)

	require.NoError(t, log.SetLevel("error"))
	require.Equal(t, "error", log.GetLevel())

	// invalid level leaves the current level in place
	require.Error(t, log.SetLevel("verbose"))
	require.Equal(t, "error", log.GetLevel())
}

func TestLogger_SetLevelPropagatesToChildren(t *testing.T) {
	parent, err := NewLogger("info", false)
	require.NoError(t, err)

	crawlerLog := parent.WithComponent("crawler")
	rpcLog := parent.WithComponent("rpc")

	require.Equal(t, "crawler", crawlerLog.GetComponent())
	require.Equal(t, "rpc", rpcLog.GetComponent())
	require.Equal(t, "", parent.GetComponent())

	require.NoError(t, parent.SetLevel("debug"))
	require.Equal(t, "debug", crawlerLog.GetLevel())
	require.Equal(t, "debug", rpcLog.GetLevel())
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, err := NewLogger("warn", false)
	require.NoError(t, err)

	require.False(t, log.level.Enabled(zapcore.DebugLevel))
	require.False(t, log.level.Enabled(zapcore.InfoLevel))
	require.True(t, log.level.Enabled(zapcore.WarnLevel))
	require.True(t, log.level.Enabled(zapcore.ErrorLevel))

	require.NoError(t, log.SetLevel("debug"))
	require.True(t, log.level.Enabled(zapcore.DebugLevel))
}

func TestNewComponentLogger(t *testing.T) {
	log := NewComponentLogger("scheduler", "debug", true)
	require.Equal(t, "scheduler", log.GetComponent())
	require.Equal(t, "debug", log.GetLevel())

	require.Panics(t, func() {
		NewComponentLogger("scheduler", "bogus", false)
	})
}

// levelsStub satisfies LoggingConfig without pulling in the config package.
type levelsStub struct {
	defaultLevel string
	development  bool
	perComponent map[string]string
}

func (s *levelsStub) GetComponentLevel(component string) string {
	if level, ok := s.perComponent[component]; ok {
		return level
	}
	return s.defaultLevel
}

func (s *levelsStub) GetDefaultLevel() string { return s.defaultLevel }
func (s *levelsStub) IsDevelopment() bool     { return s.development }

func TestNewComponentLoggerFromConfig(t *testing.T) {
	cfg := &levelsStub{
		defaultLevel: "warn",
		perComponent: map[string]string{"crawler": "debug"},
	}

	t.Run("component override", func(t *testing.T) {
		log := NewComponentLoggerFromConfig("crawler", cfg)
		require.Equal(t, "crawler", log.GetComponent())
		require.Equal(t, "debug", log.GetLevel())
	})

	t.Run("falls back to default level", func(t *testing.T) {
		log := NewComponentLoggerFromConfig("api", cfg)
		require.Equal(t, "api", log.GetComponent())
		require.Equal(t, "warn", log.GetLevel())
	})

	t.Run("nil config uses process default", func(t *testing.T) {
		log := NewComponentLoggerFromConfig("maintenance", nil)
		require.Equal(t, "maintenance", log.GetComponent())
		require.Equal(t, "info", log.GetLevel())
	})
}

func TestNewNopLogger(t *testing.T) {
	log := NewNopLogger()
	require.NotNil(t, log.SugaredLogger)

	log.Debug("dropped")
	log.Infof("dropped %d", 1)
	log.Error("dropped")
	require.NoError(t, log.Close())
}

func TestGetDefaultLogger(t *testing.T) {
	first := GetDefaultLogger()
	require.NotNil(t, first)
	require.Equal(t, "info", first.GetLevel())

	// repeated calls return the same process-wide instance
	require.Same(t, first, GetDefaultLogger())
}
