package store

import "time"

// SeedDemoCatalog loads the demo storefront catalog used for local runs.
// Some array columns are left null on purpose, as rows written by older
// clients are.
func SeedDemoCatalog(m *MemoryClient) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	at := func(i int) string { return base.Add(time.Duration(i) * time.Hour).Format(memoryTimeLayout) }

	m.Seed("categories",
		map[string]any{"id": int64(1), "name": "Irrigation Systems", "slug": "irrigation-systems",
			"description": "State-of-the-art irrigation solutions for modern agriculture.", "created_at": at(0)},
		map[string]any{"id": int64(2), "name": "Water Distribution", "slug": "water-distribution",
			"description": "Reliable and efficient water distribution pipes and fittings.", "created_at": at(0)},
		map[string]any{"id": int64(3), "name": "Solar Solutions", "slug": "solar-solutions",
			"description": "High-quality PV Junction Boxes and other solar components.", "created_at": at(0)},
	)

	m.Seed("products",
		map[string]any{"id": int64(1), "category_id": int64(1), "name": "Drip Irrigation Kit", "slug": "drip-irrigation-kit",
			"description": "A complete kit for efficient drip irrigation in a 1-acre farm. Saves water and increases yield.",
			"sku": "IRR-DRIP-001", "featured": true,
			"images": []string{"https://placehold.co/600x400/22c55e/ffffff?text=Drip+Kit", "https://placehold.co/600x400/16a34a/ffffff?text=Pipes"},
			"videos": nil, "available_variants": []string{"1 acre", "2 acre"}, "created_at": at(1)},
		map[string]any{"id": int64(2), "category_id": int64(1), "name": "Sprinkler System", "slug": "sprinkler-system",
			"description": "Automated sprinkler system for large fields and lawns. Even water distribution guaranteed.",
			"sku": nil, "featured": false,
			"images": []string{"https://placehold.co/600x400/22c55e/ffffff?text=Sprinkler"},
			"videos": nil, "available_variants": nil, "created_at": at(2)},
		map[string]any{"id": int64(3), "category_id": int64(2), "name": "HDPE Pipes", "slug": "hdpe-pipes",
			"description": "High-Density Polyethylene pipes, durable and resistant to chemicals. Available in various sizes.",
			"sku": "WD-HDPE-063", "featured": true,
			"images": []string{"https://placehold.co/600x400/3b82f6/ffffff?text=HDPE+Pipes"},
			"videos": []string{}, "available_variants": []string{"32mm", "63mm", "110mm"}, "created_at": at(3)},
		map[string]any{"id": int64(4), "category_id": int64(2), "name": "PVC Fittings", "slug": "pvc-fittings",
			"description": "A wide range of PVC fittings including elbows, tees, and couplers.",
			"sku": nil, "featured": false,
			"images": []string{"https://placehold.co/600x400/3b82f6/ffffff?text=Fittings"},
			"videos": nil, "available_variants": nil, "created_at": at(4)},
		map[string]any{"id": int64(5), "category_id": int64(3), "name": "PV Junction Box", "slug": "pv-junction-box",
			"description": "IP68 rated Photovoltaic Junction Box for solar panels. Ensures safety and performance.",
			"sku": "SOL-PVJB-68", "featured": false,
			"images": []string{"https://placehold.co/600x400/f59e0b/ffffff?text=Junction+Box"},
			"videos": nil, "available_variants": nil, "created_at": at(5)},
	)
}
