package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "auditscope"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName        = "output"
	extensionFlagName     = "extension"
	includeFlagName       = "include"
	excludeFlagName       = "exclude"
	parallelFlagName      = "parallel"
	verboseFlagName       = "verbose"
	logFileFlagName       = "log-file"
	tokenFlagName         = "token"
	urlFlagName           = "url"
	dirFlagName           = "dir"
	keepWorkspaceFlagName = "keep-workspace"
	removeTestsFlagName   = "remove-tests"
	dryRunFlagName        = "dry-run"
	baseFlagName          = "base"
	headFlagName          = "head"

	extensionsConfigKey  = "paths.extensions"
	includeConfigKey     = "paths.include"
	excludeConfigKey     = "paths.exclude"
	parallelConfigKey    = "run.parallel"
	removeTestsConfigKey = "run.remove_tests"
	gitTimeoutKey        = "run.git_timeout"
	clocTimeoutKey       = "run.cloc_timeout"
	tokenConfigKey       = "github.token"
	workspaceBaseKey     = "workspace.base"

	defaultOutputDir   = "out"
	defaultParallel    = 4
	defaultRemoveTests = true
	defaultGitTimeout  = 10 * time.Minute
	defaultClocTimeout = 5 * time.Minute

	envPrefix = "AUDITSCOPE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".auditscope.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var defaultExtensions = []string{".sol"}

// legacyEnv lists unprefixed environment variables still honoured for a key.
var legacyEnv = map[string]string{
	extensionsConfigKey: "EXTENSIONS",
	includeConfigKey:    "INCLUDE",
	excludeConfigKey:    "EXCLUDE",
	tokenConfigKey:      "GITHUB_TOKEN",
}

var globalLogger *slog.Logger

func init() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
		_ = viper.BindEnv(key, prefixed, legacy)
	}

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultOutputDir)
	viper.SetDefault(extensionsConfigKey, defaultExtensions)
	viper.SetDefault(includeConfigKey, []string{})
	viper.SetDefault(excludeConfigKey, []string{})
	viper.SetDefault(parallelConfigKey, defaultParallel)
	viper.SetDefault(removeTestsConfigKey, defaultRemoveTests)
	viper.SetDefault(gitTimeoutKey, int64(defaultGitTimeout.Seconds()))
	viper.SetDefault(clocTimeoutKey, int64(defaultClocTimeout.Seconds()))
	viper.SetDefault(workspaceBaseKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// configList reads a list setting. Entries may be given repeatedly or as a
// comma separated string; blank entries are dropped.
func configList(key string) []string {
	return splitList(viper.GetStringSlice(key))
}

func splitList(values []string) []string {
	out := []string{}

	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func configRules() m.FilterRules {
	return m.FilterRules{
		Include: configList(includeConfigKey),
		Exclude: configList(excludeConfigKey),
	}
}

func configSeconds(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Second
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
