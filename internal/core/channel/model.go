package channel

import (
	"database/sql/driver"
	"encoding/json"
	"sort"
	"time"
)

// Channel は配信チャンネルを表します
type Channel struct {
	ID            string     `json:"id"`
	NameNative    string     `json:"nameNative"`
	NameAll       string     `json:"nameAll"`
	Thumbnail     string     `json:"thumbnail"`
	UploadsHandle string     `json:"uploadList"`
	Tags          TagSet     `json:"tags"`
	Active        bool       `json:"active"`
	LastStream    *time.Time `json:"lastStream,omitempty"`
}

// TagSet はタグの集合を表します。重複・順序を持ちません。
type TagSet map[string]struct{}

// NewTagSet はタグ名のリストからTagSetを作成します
func NewTagSet(names ...string) TagSet {
	s := make(TagSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Names はタグ名をソート済みで返します
func (s TagSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has はタグの有無を返します
func (s TagSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// MarshalJSON はタグをオブジェクト形式（キー=タグ名）で出力します
func (s TagSet) MarshalJSON() ([]byte, error) {
	obj := make(map[string]int, len(s))
	for n := range s {
		obj[n] = 1
	}
	return json.Marshal(obj)
}

// UnmarshalJSON はオブジェクトのキーをタグとして読み込みます
func (s *TagSet) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	set := make(TagSet, len(obj))
	for n := range obj {
		set[n] = struct{}{}
	}
	*s = set
	return nil
}

// Value はdatabase/sql/driver.Valuerインターフェースの実装
func (s TagSet) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan はdatabase/sql.Scannerインターフェースの実装
func (s *TagSet) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return nil
	}
	return s.UnmarshalJSON(b)
}

// Info はリゾルバーが返すチャンネルの正規メタデータ
type Info struct {
	ID            string
	NameNative    string
	NameAll       string
	Thumbnail     string
	UploadsHandle string
}

// Update はチャンネル登録・更新の入力です。
// Tags / Active はnilのとき「指定なし」を意味し、既存値を上書きしません。
type Update struct {
	Tags   TagSet
	Active *bool
}
