package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackfit/autobone/internal/autobone"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{
		"logLevel": "debug",
		"autobone": { "numEpochs": 7, "targetHmdHeight": 1.8 },
		"storage": { "type": "sqlite", "sqlite": { "dumpInterval": "10m" } }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, filepath.Join(dir, ConfigFileName), FilePath(dir))

	ab := GetAutoBoneConfig()
	assert.Equal(t, 7, ab.NumEpochs)
	assert.Equal(t, 1.8, ab.TargetHmdHeight)
	assert.Equal(t, autobone.DefaultConfig().SampleCount, ab.SampleCount, "unset keys keep defaults")

	st := GetStorageConfig()
	assert.Equal(t, "sqlite", st.Type)
	assert.Equal(t, 10*time.Minute, st.SQLite.DumpInterval)
	assert.Equal(t, "autobone.db", st.SQLite.DumpPath)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, autobone.DefaultConfig(), GetAutoBoneConfig())

	st := GetStorageConfig()
	assert.Equal(t, "jsonfile", st.Type)
	assert.Equal(t, "AutoBone Recordings", st.JSONFile.SaveDir)
	assert.Equal(t, "Load AutoBone Recordings", st.JSONFile.LoadDir)
	assert.Equal(t, time.Minute, st.SQLite.DumpInterval)
	assert.Equal(t, "5432", st.Postgres.Port)

	ot := GetOtelConfig()
	assert.False(t, ot.Enabled)
	assert.Equal(t, "autobone", ot.ServiceName)
	assert.Equal(t, 5*time.Second, ot.BatchTimeout)
	assert.True(t, ot.Insecure)

	in := GetInfluxConfig()
	assert.False(t, in.Enabled)
	assert.Equal(t, "8086", in.Port)

	assert.False(t, GetReportConfig().Enabled)
	assert.Equal(t, LoggingConfig{Level: "info", LogsDir: "./logs"}, GetLoggingConfig())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, Load(dir))
	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, filepath.Join(dir, ConfigFileName), FilePath(dir))
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{ not json`)
	err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{}`)
	require.NoError(t, Load(dir))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("autobone.numEpochs", 0, "")
	require.NoError(t, flags.Parse([]string{"--autobone.numEpochs=3"}))
	require.NoError(t, BindFlags(flags))

	assert.Equal(t, 3, GetAutoBoneConfig().NumEpochs)
	assert.Equal(t, 3, GetInt("autobone.numEpochs"))
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.True(t, GetBool("testBool"))
}
