package gls

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libeufin-nexus/internal/iso20022/dialect"
	"libeufin-nexus/internal/xmlutil"
)

func TestGLSDialect_RegistersUnderName(t *testing.T) {
	d, ok := dialect.Get(Name)
	require.True(t, ok)
	assert.Equal(t, "gls", d.Name())
}

func TestGLSDialect_PrefersStructuredCreditorReference(t *testing.T) {
	doc := `<RmtInf><Strd><CdtrRefInf><Ref>INVOICE-42</Ref></CdtrRefInf></Strd><Ustrd>fallback text</Ustrd></RmtInf>`
	root, err := xmlutil.Parse(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	w := xmlutil.NewWalker(root)

	assert.Equal(t, "INVOICE-42", glsDialect{}.ExtractSubject(w))
}

func TestGLSDialect_FallsBackToUstrd(t *testing.T) {
	doc := `<RmtInf><Ustrd>fallback text</Ustrd></RmtInf>`
	root, err := xmlutil.Parse(bytes.NewReader([]byte(doc)))
	require.NoError(t, err)
	w := xmlutil.NewWalker(root)

	assert.Equal(t, "fallback text", glsDialect{}.ExtractSubject(w))
}
