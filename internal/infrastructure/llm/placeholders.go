package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Placeholders resolves [llm_intro], [llm_seo_title] and [llm_enhance]
// through a chat backend.
type Placeholders struct {
	backend Completer
	logger  *slog.Logger
}

var _ ports.PlaceholderHook = (*Placeholders)(nil)

// NewPlaceholders wires a backend as the placeholder hook.
func NewPlaceholders(backend Completer, logger *slog.Logger) *Placeholders {
	if logger == nil {
		logger = slog.Default()
	}
	return &Placeholders{backend: backend, logger: logger}
}

type placeholder struct {
	tag    string
	prompt func(p domain.Product) string
}

var placeholders = []placeholder{
	{tag: "[llm_intro]", prompt: introPrompt},
	{tag: "[llm_seo_title]", prompt: seoTitlePrompt},
	{tag: "[llm_enhance]", prompt: enhancePrompt},
}

// ResolvePlaceholders replaces every llm tag present in tpl. The first
// backend failure is returned and tpl is left for the caller to fall back on.
func (h *Placeholders) ResolvePlaceholders(ctx context.Context, tpl string, p domain.Product) (string, error) {
	out := tpl
	for _, ph := range placeholders {
		if !strings.Contains(out, ph.tag) {
			continue
		}
		text, err := h.backend.Complete(ctx, ph.prompt(p))
		if err != nil {
			return tpl, fmt.Errorf("resolve %s: %w", ph.tag, err)
		}
		h.logger.Debug("llm placeholder resolved", "tag", ph.tag, "content_id", p.ContentID, "chars", len([]rune(text)))
		out = strings.ReplaceAll(out, ph.tag, text)
	}
	return out, nil
}

func metadataContext(p domain.Product) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("タイトル", p.Title)
	line("ジャンル", domain.JoinNames(p.Genres))
	line("女優", domain.JoinNames(p.Actresses))
	line("メーカー", domain.JoinNames(p.Makers))
	line("シリーズ", domain.JoinNames(p.Series))
	line("監督", domain.JoinNames(p.Directors))
	line("発売日", p.Date)
	return b.String()
}

func introPrompt(p domain.Product) string {
	return "以下の作品の説明文を基に、魅力的で読者を引き込む紹介文を生成してください。\n\n" +
		"作品情報：\n" + metadataContext(p) + "\n" +
		"説明文：\n" + p.Comment + "\n\n" +
		"要求事項：\n" +
		"1. 200-300文字程度の読みやすい文章\n" +
		"2. 作品の魅力を効果的に伝える\n" +
		"3. 過度に露骨な表現は避ける\n" +
		"4. 適切な改行と読みやすさ\n\n" +
		"生成された紹介文のみを返してください。"
}

func seoTitlePrompt(p domain.Product) string {
	return "以下の作品のタイトルを、SEOに効果的で検索されやすいタイトルに最適化してください。\n\n" +
		"作品情報：\n" + metadataContext(p) + "\n" +
		"元のタイトル：\n" + p.Title + "\n\n" +
		"要求事項：\n" +
		"1. 30-50文字程度\n" +
		"2. 検索キーワードを含む\n" +
		"3. 作品の内容を正確に表現\n" +
		"4. 過度に露骨な表現は避ける\n\n" +
		"最適化されたタイトルのみを返してください。"
}

func enhancePrompt(p domain.Product) string {
	return "以下の作品のコンテンツを、より魅力的で読みやすい内容に改善してください。\n\n" +
		"作品情報：\n" + metadataContext(p) + "\n" +
		"元のコンテンツ：\n" + p.Comment + "\n\n" +
		"要求事項：\n" +
		"1. 文章の流れを改善\n" +
		"2. 適切な段落分け\n" +
		"3. 過度に露骨な表現は避ける\n\n" +
		"改善されたコンテンツのみを返してください。"
}
