package memory

import "github.com/dmitrijs2005/drivesync/internal/recordstore"

type subscription struct {
	*recordstore.Feed
	query recordstore.Query
}
