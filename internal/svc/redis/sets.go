package redis

import "context"

// SetAdd adds member to the set at key and reports whether it was newly
// added, together with the resulting cardinality. The add and the
// cardinality read execute in one MULTI/EXEC round trip, so concurrent
// callers cannot observe a torn state.
func (i *redisInst) SetAdd(ctx context.Context, key Key, member string) (added bool, size int64, err error) {
	p := i.client.TxPipeline()

	addCmd := p.SAdd(ctx, key.String(), member)
	cardCmd := p.SCard(ctx, key.String())

	if _, err = p.Exec(ctx); err != nil {
		return false, 0, err
	}

	return addCmd.Val() == 1, cardCmd.Val(), nil
}

// SetRemove removes member from the set at key; same atomicity as SetAdd.
func (i *redisInst) SetRemove(ctx context.Context, key Key, member string) (removed bool, size int64, err error) {
	p := i.client.TxPipeline()

	remCmd := p.SRem(ctx, key.String(), member)
	cardCmd := p.SCard(ctx, key.String())

	if _, err = p.Exec(ctx); err != nil {
		return false, 0, err
	}

	return remCmd.Val() == 1, cardCmd.Val(), nil
}

func (i *redisInst) SetCard(ctx context.Context, key Key) (int64, error) {
	return i.client.SCard(ctx, key.String()).Result()
}

func (i *redisInst) SetMembers(ctx context.Context, key Key) ([]string, error) {
	return i.client.SMembers(ctx, key.String()).Result()
}
