package ask

import (
	"fmt"
	"strings"
)

// BuildAskPrompt はRAG質問応答用のプロンプトを構築する
// chunks が空の場合は「記事の追加コンテキストなし」である旨を明示し、
// LLMに一般知識での回答を許可する（劣化モード）
func BuildAskPrompt(query string, chunks []string) string {
	var sb strings.Builder

	// システムプロンプトとガイドライン
	sb.WriteString("あなたはニュース記事についてユーザーと対話するアシスタントです。\n")
	sb.WriteString("以下の記事抜粋を基に、ユーザーの質問に正確かつ簡潔に回答してください。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- 記事抜粋に含まれる情報を優先して回答してください\n")
	sb.WriteString("- 抜粋から判断できない点は、推測せずにその旨を述べてください\n\n")

	// 関連する記事抜粋
	sb.WriteString("## コンテキスト: 記事抜粋\n")
	if len(chunks) > 0 {
		for i, chunk := range chunks {
			sb.WriteString(fmt.Sprintf("### [抜粋 %d]\n", i+1))
			sb.WriteString(chunk)
			sb.WriteString("\n\n")
		}
	} else {
		sb.WriteString("(この記事の抜粋は利用できません)\n\n")
	}

	// ユーザーの質問
	sb.WriteString("## ユーザーの質問\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	// 回答セクション
	sb.WriteString("## 回答\n")

	return sb.String()
}
