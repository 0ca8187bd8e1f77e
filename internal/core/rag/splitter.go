package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize はチャンクの最大文字数のデフォルト値
	DefaultChunkSize = 1200

	// DefaultOverlap は前チャンクから引き継ぐ文字数のデフォルト値
	DefaultOverlap = 150
)

// Splitter は長いテキストをオーバーラップ付きのチャンク列に分割する
// 純粋関数として動作し、I/Oや乱数に依存しない。同じ入力と設定からは
// 常に同じ出力が得られる
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter は新しい Splitter を作成する
// chunkSize <= 0 や overlap < 0 はデフォルト値に置き換える。
// overlap >= chunkSize の誤設定は各チャンクの大半が前チャンクの複製に
// なるため、chunkSize/2 へクランプする
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap > chunkSize/2 {
		overlap = chunkSize / 2
	}

	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// ChunkSize はチャンクの最大文字数を返す
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap はオーバーラップ文字数を返す
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split はテキストをチャンク列に分割する
// 空または空白のみの入力には nil を返す（エラーではない）。
// 分割は自然な境界を優先する: 段落 → 行 → 文末記号+空白 → 空白 →
// 最終手段としての強制カット。境界付近に空白が存在する限り、単語の
// 途中で切断されることはない。
// 2番目以降のチャンクには直前の生セグメント末尾 overlap 文字が
// 空白1つを挟んで前置され、境界をまたぐ検索品質を保つ
func (s *Splitter) Split(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	if utf8.RuneCountInString(trimmed) <= s.chunkSize {
		return []string{trimmed}
	}

	pieces := s.segment(trimmed, 0)

	chunks := make([]string, 0, len(pieces))
	prev := ""
	for _, piece := range pieces {
		text := piece
		if prev != "" && s.overlap > 0 {
			text = tailRunes(prev, s.overlap) + " " + piece
		}
		prev = piece

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks = append(chunks, text)
	}

	return chunks
}

// 分割に使うセパレータの優先順位
// レベル2（文境界）はリテラルではないため splitLevel が特別扱いする
const (
	levelParagraph = iota
	levelLine
	levelSentence
	levelSpace
	levelHardCut
)

// segment はテキストを chunkSize 以下の生セグメントへ再帰的に分割する
// まず現在レベルのセパレータで分割し、隣接セグメントを chunkSize を
// 超えない範囲で貪欲に詰め直す。それでも超過するセグメントだけが
// 次のレベルへ再帰する
func (s *Splitter) segment(text string, level int) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}

	if level >= levelHardCut {
		return hardCut(text, s.chunkSize)
	}

	parts, joiner := splitLevel(text, level)
	if len(parts) <= 1 {
		// このレベルのセパレータが存在しない場合は次のレベルへ
		return s.segment(text, level+1)
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	joinerLen := utf8.RuneCountInString(joiner)
	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)

		if partLen > s.chunkSize {
			flush()
			pieces = append(pieces, s.segment(part, level+1)...)
			continue
		}

		if currentLen > 0 && currentLen+joinerLen+partLen > s.chunkSize {
			flush()
		}

		if currentLen > 0 {
			current.WriteString(joiner)
			currentLen += joinerLen
		}
		current.WriteString(part)
		currentLen += partLen
	}
	flush()

	return pieces
}

// splitLevel は指定レベルのセパレータでテキストを分割し、
// 詰め直しの際に使う結合文字列を返す
func splitLevel(text string, level int) ([]string, string) {
	switch level {
	case levelParagraph:
		return strings.Split(text, "\n\n"), "\n\n"
	case levelLine:
		return strings.Split(text, "\n"), "\n"
	case levelSentence:
		return splitSentences(text), " "
	default:
		return strings.Split(text, " "), " "
	}
}

// splitSentences は文末記号（. ! ?）の直後に空白が続く位置で分割する
// 文末記号は前のセグメントに残し、区切りの空白は結合時に復元される
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && text[i+1] == ' ' {
			parts = append(parts, text[start:i+1])
			start = i + 2
		}
	}
	if start <= len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// hardCut は空白が一切存在しないテキストを size 文字ごとに強制分割する
func hardCut(text string, size int) []string {
	runes := []rune(text)
	var pieces []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// tailRunes は末尾 n 文字を返す
func tailRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
