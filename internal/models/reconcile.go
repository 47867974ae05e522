package models

// FilterPurchased drops every entry of c that purchases already covers.
func FilterPurchased(c Cart, purchases Purchases) Cart {
	if c.Empty() || len(purchases) == 0 {
		return c
	}
	out := c
	for _, id := range c.order {
		if purchases.Contains(id) {
			out = out.Delete(id)
		}
	}
	return out
}

// MergeCarts unions remote and local. On a key collision the local entry wins
// and keeps the remote entry's position; local-only keys follow in local order.
func MergeCarts(remote, local Cart) Cart {
	out := remote
	for _, id := range local.order {
		out = out.put(id, local.items[id])
	}
	return out
}
