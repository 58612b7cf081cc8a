package ranking

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{MaxUpload: 1024, PlatformCeiling: 4096}

func TestIntake_DeclaredSize(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		expectedKind  Kind
		expectedError string
	}{
		{name: "not a number", header: "abc", expectedKind: KindValidation, expectedError: "bad size header"},
		{name: "negative", header: "-5", expectedKind: KindValidation, expectedError: "bad size header"},
		{name: "overflows int64", header: "99999999999999999999999", expectedKind: KindPayloadTooLarge, expectedError: "exceeds platform ceiling"},
		{name: "above platform ceiling", header: "5000", expectedKind: KindPayloadTooLarge, expectedError: "exceeds platform ceiling"},
		{name: "above configured maximum", header: "2000", expectedKind: KindPayloadTooLarge, expectedError: "exceeds configured maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			scope := NewScope(dir)
			defer scope.Release()

			req := newMultipartRequest(t,
				formPart{field: "idea", content: "AI tools for marketing"},
				formPart{field: "csv", filename: "contacts.csv", content: sampleCSV},
			)
			req.Header.Set("Content-Length", tt.header)

			upload, err := Intake(httptest.NewRecorder(), req, scope, testLimits)

			require.Error(t, err)
			assert.Nil(t, upload)
			assert.Equal(t, tt.expectedKind, KindOf(err))
			assert.Contains(t, err.Error(), tt.expectedError)
			assert.Empty(t, dirEntries(t, dir), "no side effect before the body is read")
		})
	}
}

func TestIntake_DeclaredLengthWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	scope := NewScope(dir)
	defer scope.Release()

	req := newMultipartRequest(t,
		formPart{field: "idea", content: "AI tools for marketing"},
		formPart{field: "csv", filename: "contacts.csv", content: sampleCSV},
	)
	req.Header.Del("Content-Length")
	req.ContentLength = 2000

	_, err := Intake(httptest.NewRecorder(), req, scope, testLimits)

	require.Error(t, err)
	assert.Equal(t, KindPayloadTooLarge, KindOf(err))
	assert.Contains(t, err.Error(), "exceeds configured maximum")
	assert.Empty(t, dirEntries(t, dir))
}

func TestIntake_ParseTimeCeiling(t *testing.T) {
	t.Run("lying header does not bypass the ceiling", func(t *testing.T) {
		scope := NewScope(t.TempDir())
		defer scope.Release()

		req := newMultipartRequest(t,
			formPart{field: "idea", content: "ideas"},
			formPart{field: "csv", filename: "big.csv", content: strings.Repeat("x", 2000)},
		)
		req.Header.Set("Content-Length", "10")

		_, err := Intake(httptest.NewRecorder(), req, scope, testLimits)
		require.Error(t, err)
		assert.Equal(t, KindPayloadTooLarge, KindOf(err))
	})

	t.Run("content exactly at the maximum is accepted", func(t *testing.T) {
		scope := NewScope(t.TempDir())
		defer scope.Release()

		req := newMultipartRequest(t,
			formPart{field: "csv", filename: "exact.csv", content: strings.Repeat("y", 1020)},
			formPart{field: "idea", content: "idea"},
		)
		req.ContentLength = -1

		upload, err := Intake(httptest.NewRecorder(), req, scope, testLimits)
		require.NoError(t, err)
		assert.Equal(t, int64(1020), upload.Size)
		assert.Equal(t, "idea", upload.Idea)
	})

	t.Run("total content across parts is bounded", func(t *testing.T) {
		scope := NewScope(t.TempDir())
		defer scope.Release()

		req := newMultipartRequest(t,
			formPart{field: "csv", filename: "half.csv", content: strings.Repeat("z", 700)},
			formPart{field: "idea", content: strings.Repeat("i", 400)},
		)
		req.ContentLength = -1

		_, err := Intake(httptest.NewRecorder(), req, scope, testLimits)
		require.Error(t, err)
		assert.Equal(t, KindPayloadTooLarge, KindOf(err))
	})

	t.Run("unknown parts count against the budget", func(t *testing.T) {
		scope := NewScope(t.TempDir())
		defer scope.Release()

		req := newMultipartRequest(t,
			formPart{field: "padding", content: strings.Repeat("p", 1100)},
			formPart{field: "idea", content: "idea"},
		)
		req.ContentLength = -1

		_, err := Intake(httptest.NewRecorder(), req, scope, testLimits)
		require.Error(t, err)
		assert.Equal(t, KindPayloadTooLarge, KindOf(err))
	})
}

func TestIntake_RequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		parts         []formPart
		expectedError string
	}{
		{
			name:          "missing idea",
			parts:         []formPart{{field: "csv", filename: "c.csv", content: sampleCSV}},
			expectedError: "missing idea or file",
		},
		{
			name:          "blank idea",
			parts:         []formPart{{field: "idea", content: "   "}, {field: "csv", filename: "c.csv", content: sampleCSV}},
			expectedError: "missing idea or file",
		},
		{
			name:          "missing file",
			parts:         []formPart{{field: "idea", content: "AI tools"}},
			expectedError: "missing idea or file",
		},
		{
			name:          "empty form",
			parts:         nil,
			expectedError: "missing idea or file",
		},
		{
			name: "two files",
			parts: []formPart{
				{field: "idea", content: "AI tools"},
				{field: "csv", filename: "a.csv", content: "a"},
				{field: "file", filename: "b.csv", content: "b"},
			},
			expectedError: "only one file",
		},
		{
			name: "idea with NUL byte",
			parts: []formPart{
				{field: "idea", content: "AI\x00tools"},
				{field: "csv", filename: "c.csv", content: sampleCSV},
			},
			expectedError: "invalid idea",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			scope := NewScope(dir)

			_, err := Intake(httptest.NewRecorder(), newMultipartRequest(t, tt.parts...), scope, testLimits)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Contains(t, err.Error(), tt.expectedError)

			scope.Release()
			assert.Empty(t, dirEntries(t, dir))
		})
	}
}

func TestIntake_NotMultipart(t *testing.T) {
	scope := NewScope(t.TempDir())
	defer scope.Release()

	req := httptest.NewRequest(http.MethodPost, "/api/rank", strings.NewReader(`{"idea":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := Intake(httptest.NewRecorder(), req, scope, testLimits)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "multipart/form-data")
}

func TestIntake_Success(t *testing.T) {
	tests := []struct {
		name      string
		fileField string
	}{
		{name: "csv field", fileField: "csv"},
		{name: "file alias", fileField: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			scope := NewScope(dir)
			defer scope.Release()

			req := newMultipartRequest(t,
				formPart{field: "idea", content: "  AI tools for marketing "},
				formPart{field: tt.fileField, filename: "contacts.csv", content: sampleCSV},
			)

			upload, err := Intake(httptest.NewRecorder(), req, scope, testLimits)
			require.NoError(t, err)

			assert.Equal(t, "AI tools for marketing", upload.Idea)
			assert.Equal(t, "contacts.csv", upload.Filename)
			assert.Equal(t, int64(len(sampleCSV)), upload.Size)
			assert.Equal(t, scope.Path(), upload.Path)

			content, err := os.ReadFile(upload.Path)
			require.NoError(t, err)
			assert.Equal(t, sampleCSV, string(content))
			assert.Len(t, dirEntries(t, dir), 1)
		})
	}
}

func TestStage(t *testing.T) {
	t.Run("copies within limit", func(t *testing.T) {
		scope := NewScope(t.TempDir())
		defer scope.Release()

		path, n, err := Stage(scope, "local.csv", strings.NewReader(sampleCSV), testLimits)
		require.NoError(t, err)
		assert.Equal(t, int64(len(sampleCSV)), n)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, sampleCSV, string(content))
	})

	t.Run("rejects oversize input", func(t *testing.T) {
		scope := NewScope(t.TempDir())
		defer scope.Release()

		_, _, err := Stage(scope, "big.csv", strings.NewReader(strings.Repeat("b", 1025)), testLimits)
		require.Error(t, err)
		assert.Equal(t, KindPayloadTooLarge, KindOf(err))
	})
}
