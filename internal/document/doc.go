// Package document assembles questions, answers, and rendered diagrams
// into the final PDF.
//
// The layout is fixed: a title page, a table of contents, then one section
// per question holding the question text, the answer, its figures with
// sequential captions, and the answer's references. Content pages carry
// page numbers; the title page does not. RTL languages get right-aligned
// body text.
//
// Text is written with the cp1252 core fonts, so Latin-script languages
// render fully while other scripts degrade to substitute characters.
// Embedding CJK or Arabic fonts would require shipping TTF files.
package document
