package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field is one labelled line in a panel
type Field struct {
	Label string
	Value string
}

// RenderPanel draws a titled box around fields. Long values are not
// wrapped; the box grows to fit them.
func RenderPanel(title string, fields []Field) string {
	labelWidth := 0
	for _, f := range fields {
		if n := utf8.RuneCountInString(f.Label); n > labelWidth {
			labelWidth = n
		}
	}

	width := utf8.RuneCountInString(title) + 8
	for _, f := range fields {
		// "│ label: value │"
		if n := labelWidth + utf8.RuneCountInString(f.Value) + 6; n > width {
			width = n
		}
	}

	var sb strings.Builder
	titleText := " " + title + " "
	rightDashes := width - 2 - 3 - utf8.RuneCountInString(titleText)
	if rightDashes < 0 {
		rightDashes = 0
	}
	sb.WriteString(Color(Cyan, BoxTopLeft+strings.Repeat(BoxHorizontal, 3)))
	sb.WriteString(Color(Cyan+Bold, titleText))
	sb.WriteString(Color(Cyan, strings.Repeat(BoxHorizontal, rightDashes)+BoxTopRight))
	sb.WriteString("\n")

	for _, f := range fields {
		label := f.Label + ":" + strings.Repeat(" ", labelWidth-utf8.RuneCountInString(f.Label))
		visible := utf8.RuneCountInString(label) + utf8.RuneCountInString(f.Value) + 3
		padding := width - 1 - visible
		if padding < 0 {
			padding = 0
		}
		sb.WriteString(Color(Cyan, BoxVertical))
		sb.WriteString(" ")
		sb.WriteString(Color(Dim, label))
		sb.WriteString(" ")
		sb.WriteString(f.Value)
		sb.WriteString(strings.Repeat(" ", padding))
		sb.WriteString(Color(Cyan, BoxVertical))
		sb.WriteString("\n")
	}

	sb.WriteString(Color(Cyan, BoxBottomLeft+strings.Repeat(BoxHorizontal, width-2)+BoxBottomRight))
	sb.WriteString("\n")
	return sb.String()
}

// RenderError formats an error message
func RenderError(err error) string {
	return Color(Red, fmt.Sprintf("Error: %v", err))
}

// RenderSuccess formats a success message
func RenderSuccess(msg string) string {
	return Color(Green, msg)
}

// RenderWarning formats a warning message
func RenderWarning(msg string) string {
	return Color(Yellow, msg)
}

// RenderDim formats text in dim style
func RenderDim(msg string) string {
	return Color(Dim, msg)
}
