package medal

import (
	"encoding/json"
	"fmt"
	"testing"
)

func seedHistory(t *testing.T) {
	t.Helper()
	for i := 0; i < 25; i++ {
		ref := fmt.Sprintf("earn-%d", i)
		if err := EarnMedals("user-1", "vtuber-1", 10, SourceGachaDraw, "抽選報酬", ref); err != nil {
			t.Fatalf("EarnMedals error: %v", err)
		}
	}
	resID, err := Reserve("user-1", "vtuber-1", 30)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}
	if err := CommitReservation(resID, SourceExchange, "アイテム交換", "redemption-1"); err != nil {
		t.Fatalf("CommitReservation error: %v", err)
	}
}

func TestTransactionHistoryPagination(t *testing.T) {
	setupLedgerTest(t)
	seedHistory(t)

	records, total, err := TransactionHistory("user-1", HistoryFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("TransactionHistory error: %v", err)
	}
	if total != 26 {
		t.Fatalf("总条数应为26, got %d", total)
	}
	if len(records) != 10 {
		t.Fatalf("第一页应有10条, got %d", len(records))
	}
	// 倒序：最新的交易（used）排在最前
	if records[0].Type != TypeUsed {
		t.Fatalf("最新一条应为used交易, got %s", records[0].Type)
	}

	lastPage, _, err := TransactionHistory("user-1", HistoryFilter{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("TransactionHistory error: %v", err)
	}
	if len(lastPage) != 6 {
		t.Fatalf("末页应有6条, got %d", len(lastPage))
	}
}

// 返回体只携带业务字段，数据库行的内部字段不对外暴露
func TestTransactionResponseOmitsInternalFields(t *testing.T) {
	setupLedgerTest(t)
	if err := EarnMedals("user-1", "vtuber-1", 10, SourceGachaDraw, "抽選報酬", "earn-1"); err != nil {
		t.Fatalf("EarnMedals error: %v", err)
	}

	records, _, err := TransactionHistory("user-1", HistoryFilter{})
	if err != nil {
		t.Fatalf("TransactionHistory error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("应有1条记录, got %d", len(records))
	}

	raw, err := json.Marshal(toTransactionResponse(records[0]))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if id, ok := fields["id"].(string); !ok || id != records[0].UUID {
		t.Fatalf("id应为交易UUID, got %v", fields["id"])
	}
	if _, ok := fields["createdAt"]; !ok {
		t.Fatal("返回体应包含createdAt")
	}
	for _, internal := range []string{"ID", "UpdatedAt", "DeletedAt", "UserID", "RefID"} {
		if _, ok := fields[internal]; ok {
			t.Fatalf("返回体不应包含内部字段 %s", internal)
		}
	}
}

func TestTransactionHistoryFilters(t *testing.T) {
	setupLedgerTest(t)
	seedHistory(t)

	used, total, err := TransactionHistory("user-1", HistoryFilter{Type: TypeUsed})
	if err != nil {
		t.Fatalf("TransactionHistory error: %v", err)
	}
	if total != 1 || len(used) != 1 {
		t.Fatalf("used过滤应命中1条, got total=%d len=%d", total, len(used))
	}
	if used[0].Source != SourceExchange || used[0].Amount != 30 {
		t.Fatalf("used交易内容不正确: %+v", used[0])
	}

	_, total, err = TransactionHistory("user-1", HistoryFilter{Source: SourceGachaDraw})
	if err != nil {
		t.Fatalf("TransactionHistory error: %v", err)
	}
	if total != 25 {
		t.Fatalf("gacha-draw过滤应命中25条, got %d", total)
	}

	_, total, err = TransactionHistory("ghost", HistoryFilter{})
	if err != nil {
		t.Fatalf("TransactionHistory error: %v", err)
	}
	if total != 0 {
		t.Fatalf("其他用户不应看到任何记录, got %d", total)
	}
}
