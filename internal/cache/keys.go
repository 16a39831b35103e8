package cache

import (
	"fmt"
	"time"
)

const (
	IndexPageKeyPrefix = "index_page:%d:%d"
	GroupKeyPrefix     = "group:%s"
)

const (
	GroupTTL = 10 * time.Minute
)

// IndexPageKey identifies one page of the index feed for a given page size.
func IndexPageKey(pageSize, page int) string {
	return fmt.Sprintf(IndexPageKeyPrefix, pageSize, page)
}

func GroupKey(slug string) string {
	return fmt.Sprintf(GroupKeyPrefix, slug)
}
