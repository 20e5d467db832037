package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/absredact/internal/model"
)

const bboxHTML = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
<title>paper</title>
<meta name="Producer" content="pdfTeX"/>
</head>
<body>
<doc>
  <page width="612.000000" height="792.000000">
    <word xMin="72.000000" yMin="71.500000" xMax="110.400000" yMax="83.200000">Deep</word>
    <word xMin="113.000000" yMin="71.500000" xMax="170.000000" yMax="83.200000">learning&amp;co</word>
    <word xMin="600.000000" yMin="71.500000" xMax="640.000000" yMax="83.200000">edge</word>
  </page>
  <page width="612.000000" height="792.000000">
  </page>
  <page width="595.276000" height="841.890000">
    <word xMin="10" yMin="10" xMax="20" yMax="20">Résumé</word>
    <word xMin="30" yMin="10" xMax="40" yMax="20">   </word>
  </page>
</doc>
</body>
</html>`

func TestParseBBoxHTML(t *testing.T) {
	doc, err := ParseBBoxHTML(strings.NewReader(bboxHTML))
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2, "blank page dropped")

	first := doc.Pages[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 612, first.Width)
	assert.Equal(t, 792, first.Height)
	require.Len(t, first.Words, 3)
	assert.Equal(t, "Deep", first.Words[0].Text)
	assert.Equal(t, model.BBox{XMin: 72, YMin: 72, XMax: 110, YMax: 83}, first.Words[0].Box)
	assert.Equal(t, "learning&co", first.Words[1].Text)
	assert.Equal(t, 612, first.Words[2].Box.XMax, "clamped to the page")

	last := doc.Pages[1]
	assert.Equal(t, 3, last.Number, "numbering counts blank pages")
	assert.Equal(t, 595, last.Width)
	assert.Equal(t, 842, last.Height)
	require.Len(t, last.Words, 1)
	assert.Equal(t, "Résumé", last.Words[0].Text)
}

func TestParseBBoxHTML_ZeroSizePage(t *testing.T) {
	in := `<doc><page width="0" height="792"><word xMin="1" yMin="1" xMax="2" yMax="2">x</word></page></doc>`
	doc, err := ParseBBoxHTML(strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, doc.Pages)
}

func TestParseBBoxHTML_BadAttribute(t *testing.T) {
	in := `<doc><page width="612" height="792"><word xMin="a" yMin="1" xMax="2" yMax="2">x</word></page></doc>`
	_, err := ParseBBoxHTML(strings.NewReader(in))
	assert.ErrorIs(t, err, model.ErrMalformedInput)

	in = `<doc><page width="612"></page></doc>`
	_, err = ParseBBoxHTML(strings.NewReader(in))
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}
