package dominspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestAnalyzeHTML_RegistrationForm(t *testing.T) {
	html := `
	<html><body>
		<form action="/register" method="POST">
			<label for="em">Email Address</label>
			<input type="email" id="em" name="email" required>
			<input type="password" name="password" required>
			<input type="text" name="full_name" placeholder="Full name">
			<input type="hidden" name="csrf_token" value="abc123">
			<input type="submit" value="Sign Up">
		</form>
	</body></html>`

	analysis, err := AnalyzeHTML(html, "https://scam.example/signup")
	require.NoError(t, err)
	require.Len(t, analysis.Forms, 1)

	form := analysis.Forms[0]
	assert.Equal(t, "/register", form.Action)
	assert.Equal(t, "POST", form.Method)
	// Hidden and submit inputs collect nothing from the visitor.
	require.Len(t, form.Fields, 3)

	assert.Equal(t, models.PIIEmail, form.Fields[0].Category)
	assert.Equal(t, "Email Address", form.Fields[0].FieldLabel)
	assert.True(t, form.Fields[0].Required)
	assert.Equal(t, models.PIIPassword, form.Fields[1].Category)
	assert.Equal(t, models.PIIName, form.Fields[2].Category)
	assert.False(t, form.Fields[2].Required)

	exposures := analysis.PIIExposures()
	assert.Len(t, exposures, 3)
	assert.Equal(t, "https://scam.example/signup", exposures[0].PageURL)
}

func TestAnalyzeHTML_CopyButtonAddress(t *testing.T) {
	html := `
	<html><body>
		<p>Send exactly 0.5 ETH to continue.</p>
		<span id="addr">0x52908400098527886E0F7030069857D2E4169EE7</span>
		<button data-clipboard-text="TJRabPrwbZy45sbavfcjinPJC18kjpRTv8">Copy TRX address</button>
	</body></html>`

	analysis, err := AnalyzeHTML(html, "https://scam.example/deposit")
	require.NoError(t, err)
	assert.Empty(t, analysis.Forms)

	require.Len(t, analysis.Wallets, 2)
	symbols := []string{analysis.Wallets[0].Symbol, analysis.Wallets[1].Symbol}
	assert.Contains(t, symbols, "ETH")
	assert.Contains(t, symbols, "TRX")
}

func TestAnalyzeHTML_DuplicateAddressesCollapse(t *testing.T) {
	html := `
	<html><body>
		<span>0x52908400098527886E0F7030069857D2E4169EE7</span>
		<input value="0x52908400098527886E0F7030069857D2E4169EE7">
	</body></html>`

	analysis, err := AnalyzeHTML(html, "https://scam.example")
	require.NoError(t, err)
	assert.Len(t, analysis.Wallets, 1)
}

func TestAnalyzeHTML_EmptyFormsDropped(t *testing.T) {
	html := `
	<html><body>
		<form action="/newsletter" method="POST">
			<input type="submit" value="Go">
		</form>
	</body></html>`

	analysis, err := AnalyzeHTML(html, "https://scam.example")
	require.NoError(t, err)
	assert.Empty(t, analysis.Forms)
}
