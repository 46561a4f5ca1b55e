package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
	"github.com/assist-by/phoenix-backtest/internal/notification"
)

const footer = "Assist by Phoenix Backtest 🤖"

var _ notification.Notifier = (*Client)(nil)

// SendReport는 백테스트 요약 리포트를 전송합니다
func (c *Client) SendReport(ctx context.Context, name string, result *backtest.Result) error {
	return c.Send(ctx, WebhookMessage{Embeds: []Embed{*ReportEmbed(name, result)}})
}

// SendError는 실패한 백테스트 알림을 전송합니다
func (c *Client) SendError(ctx context.Context, name string, err error) error {
	embed := newEmbed(
		fmt.Sprintf("백테스트 실패: %s", name),
		fmt.Sprintf("```%v```", err),
		notification.ColorError,
	)
	return c.Send(ctx, WebhookMessage{Embeds: []Embed{*embed}})
}

// ReportEmbed는 실행 결과를 임베드로 변환합니다
func ReportEmbed(name string, result *backtest.Result) *Embed {
	m := result.Metrics
	embed := newEmbed(
		fmt.Sprintf("백테스트 결과: %s", name),
		fmt.Sprintf("**심볼**: %s (%s)\n**기간**: %s ~ %s\n**상태**: %s",
			result.Symbol, result.Interval,
			result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"),
			result.Status),
		notification.ColorForResult(result),
	).
		inline("총 수익률", fmt.Sprintf("%.2f%%", m.TotalReturn)).
		inline("최종 자산", fmt.Sprintf("$%.2f", m.FinalEquity)).
		inline("최대 낙폭", fmt.Sprintf("%.2f%%", m.MaxDrawdown)).
		inline("거래 수", fmt.Sprintf("%d (승 %d / 패 %d)", m.TotalTrades, m.WinningTrades, m.LosingTrades)).
		inline("승률", fmt.Sprintf("%.2f%%", m.WinRate)).
		inline("손익비", fmt.Sprintf("%.2f", m.ProfitFactor)).
		inline("샤프", fmt.Sprintf("%.2f", m.SharpeRatio)).
		inline("소르티노", fmt.Sprintf("%.2f", m.SortinoRatio)).
		inline("수수료", fmt.Sprintf("$%.2f", result.TransactionCosts.TotalCommission))

	skips := result.ExecutionQuality.SkippedDecisions
	if len(skips) == 0 {
		return embed
	}

	reasons := make([]string, 0, len(skips))
	for reason := range skips {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	var b strings.Builder
	for _, reason := range reasons {
		fmt.Fprintf(&b, "%s: %d\n", reason, skips[backtest.SkipReason(reason)])
	}
	return embed.field("건너뛴 결정", b.String(), false)
}
