package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_MixedBlocks(t *testing.T) {
	raw := "**Label:** text\n- item1\n* item2\n1. first\n2. second"
	want := "<b>Label:</b> text<ul><li>item1</li><li>item2</li></ul><ol><li>first</li><li>second</li></ol>"
	assert.Equal(t, want, Normalize(raw))
}

func TestNormalize_TextLines(t *testing.T) {
	assert.Equal(t, "line one<br>line two", Normalize("line one\nline two"))
	assert.Equal(t, "para one<br><br>para two", Normalize("para one\n\npara two\n"))
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("\n \n"))
}

func TestNormalize_ListClosesOnText(t *testing.T) {
	raw := "Intro\n- a\n- b\nAfter list\n3. c"
	want := "Intro<ul><li>a</li><li>b</li></ul>After list<ol><li>c</li></ol>"
	assert.Equal(t, want, Normalize(raw))
}

func TestNormalize_BlankLineSplitsLists(t *testing.T) {
	assert.Equal(t, "<ul><li>a</li></ul><ul><li>b</li></ul>", Normalize("- a\n\n- b"))
}

func TestNormalize_EscapesMarkup(t *testing.T) {
	got := Normalize("<script>alert(1)</script>\n- **Note:** x < y & z")
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;<ul><li><b>Note:</b> x &lt; y &amp; z</li></ul>", got)
}

func TestNormalize_NotAList(t *testing.T) {
	assert.Equal(t, "-dash<br>1.5 litres<br>**bold** only", Normalize("-dash\n1.5 litres\n**bold** only"))
}

func TestParse(t *testing.T) {
	blocks := Parse("Title\r\n  - one\r\n  - two\r\n10. ten")
	require.Len(t, blocks, 3)
	assert.Equal(t, Block{Kind: BlockText, Lines: []string{"Title"}}, blocks[0])
	assert.Equal(t, Block{Kind: BlockUnordered, Lines: []string{"one", "two"}}, blocks[1])
	assert.Equal(t, Block{Kind: BlockOrdered, Lines: []string{"ten"}}, blocks[2])
	assert.Equal(t, "ordered", blocks[2].Kind.String())
}
