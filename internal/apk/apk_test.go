// File: internal/apk/apk_test.go
package apk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleBadging = `package: name='com.example.calculator' versionCode='42' versionName='1.4.2' platformBuildVersionName='14'
sdkVersion:'24'
targetSdkVersion:'34'
application-label:'Calculator Plus'
application-label-de:'Taschenrechner'
launchable-activity: name='com.example.calculator.MainActivity'  label='Calculator Plus' icon=''
uses-permission: name='android.permission.INTERNET'`

func TestParseBadging(t *testing.T) {
	info := parseBadging(sampleBadging)

	assert.Equal(t, "com.example.calculator", info.PackageName)
	assert.Equal(t, "1.4.2", info.VersionName)
	assert.Equal(t, "Calculator Plus", info.Label)
	assert.Equal(t, "com.example.calculator.MainActivity", info.LaunchableActivity)
}

func TestParseBadging_MissingFields(t *testing.T) {
	info := parseBadging("sdkVersion:'24'\n")
	assert.Empty(t, info.PackageName)
	assert.Empty(t, info.Label)
}

func TestQuotedValue(t *testing.T) {
	line := "package: name='com.app' versionName='2.0'"
	assert.Equal(t, "com.app", quotedValue(line, "name="))
	assert.Equal(t, "2.0", quotedValue(line, "versionName="))
	assert.Empty(t, quotedValue(line, "missing="))
	assert.Empty(t, quotedValue("name=unquoted", "name="))
}

func TestInspect_MissingFile(t *testing.T) {
	a := NewAnalyzer(zaptest.NewLogger(t))
	_, err := a.Inspect(context.Background(), "/no/such/file.apk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
