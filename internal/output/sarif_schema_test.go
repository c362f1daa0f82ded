package output

import (
	"bytes"
	"embed"
	"encoding/json"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secaudit/secaudit/internal/scanner"
)

//go:embed sarif-2.1.0.json
var sarifSchema embed.FS

func compileSARIFSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()

	schemaData, err := sarifSchema.ReadFile("sarif-2.1.0.json")
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	err = compiler.AddResource("sarif-2.1.0.json", bytes.NewReader(schemaData))
	require.NoError(t, err)

	schema, err := compiler.Compile("sarif-2.1.0.json")
	require.NoError(t, err)
	return schema
}

func validateSARIF(t *testing.T, schema *jsonschema.Schema, result *scanner.ScanResult) {
	t.Helper()

	sarifJSON, err := json.Marshal(generateSARIF(result))
	require.NoError(t, err)

	var v interface{}
	err = json.Unmarshal(sarifJSON, &v)
	require.NoError(t, err)

	assert.NoError(t, schema.Validate(v))
}

func TestSARIFSchemaValidation(t *testing.T) {
	schema := compileSARIFSchema(t)

	result := &scanner.ScanResult{
		RootPath:     "/tmp/project",
		FilesScanned: 3,
		Duration:     120 * time.Millisecond,
		Issues: []scanner.Issue{
			scanner.NewIssue("src/app.js", 12, "secret.aws_key", scanner.SeverityHigh,
				"AWS access key detected", `const key = "AKIA****MNOP";`),
			scanner.NewIssue("src/util.js", 3, "pattern.eval_usage", scanner.SeverityMedium,
				"Use of eval()", "eval(userInput);"),
			scanner.NewIssue("src/other.js", 9, "pattern.eval_usage", scanner.SeverityMedium,
				"Use of eval()", "eval(payload);"),
		},
	}

	validateSARIF(t, schema, result)
}

func TestSARIFSchemaValidation_EmptyResult(t *testing.T) {
	schema := compileSARIFSchema(t)
	validateSARIF(t, schema, &scanner.ScanResult{RootPath: "/tmp/project", Issues: []scanner.Issue{}})
}

func TestGenerateSARIF_RulesDeduplicated(t *testing.T) {
	result := &scanner.ScanResult{
		Issues: []scanner.Issue{
			scanner.NewIssue("a.js", 1, "pattern.eval_usage", scanner.SeverityMedium, "Use of eval()", "eval(a);"),
			scanner.NewIssue("b.js", 2, "pattern.eval_usage", scanner.SeverityMedium, "Use of eval()", "eval(b);"),
		},
	}

	doc := generateSARIF(result)
	runs := doc["runs"].([]map[string]interface{})
	require.Len(t, runs, 1)

	driver := runs[0]["tool"].(map[string]interface{})["driver"].(map[string]interface{})
	rules := driver["rules"].([]map[string]interface{})
	assert.Len(t, rules, 1)

	results := runs[0]["results"].([]map[string]interface{})
	assert.Len(t, results, 2)
}
