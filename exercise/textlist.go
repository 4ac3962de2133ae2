package exercise

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TextList is a list of short texts stored as a JSON array
type TextList []string

func (b *TextList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*b = TextList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("Failed to unmarshal jsonb value: %v", value)
	}
	return json.Unmarshal(raw, (*[]string)(b))
}

func (b TextList) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(b))
}

func (TextList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
