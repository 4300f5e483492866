package report

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const reportCSS = `
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
body{font-family:-apple-system,"Segoe UI",Helvetica,Arial,sans-serif;color:#1c1917;background:#fff;margin:0;padding:0.6rem;}
.report-wrap{max-width:1100px;margin:0 auto;}
.report-html h1{font-size:1.5rem;border-bottom:3px solid #0e7490;padding-bottom:0.3rem;}
.report-html h2{font-size:1.15rem;margin-top:1.4rem;color:#0e7490;}
.report-html ul{padding-left:1.1rem;}
.report-html code{font-size:0.85em;}
.report-html table{width:100%;border-collapse:collapse;border:1px solid #a8a29e;font-size:0.8rem;}
.report-html th,.report-html td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;vertical-align:top;}
.report-html thead th{background:#f1f5f9;font-weight:700;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
@media print{@page{size:auto;margin:12mm;} body{padding:0;} .report-wrap{max-width:none;}}
`

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders the Markdown report into a standalone page.
func HTML(doc Document) (string, error) {
	var content strings.Builder
	if err := md.Convert([]byte(Markdown(doc)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	title := "CIP Skid Design"
	if doc.ID != "" {
		title += " " + doc.ID
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		"<div class='report-wrap'><div class='report-html'>" + applyPrintLayoutHooks(content.String()) + "</div></div>" +
		"</body></html>", nil
}

var bomHeading = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Bill of Materials\s*</h2>`)

// applyPrintLayoutHooks starts the BOM on a fresh page when printed.
func applyPrintLayoutHooks(contentHTML string) string {
	return bomHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Bill of Materials</h2>`)
}
