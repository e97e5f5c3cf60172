package world

import "time"

func (w *World) stepInternal(inputs []InputEnvelope, dt float64) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Apply inputs in server receive order; the last envelope wins.
	for _, env := range inputs {
		w.applyInput(env)
	}
	w.integrateMovement(dt)

	rep := w.streamChunks()
	w.genNsTotal += rep.genNs
	w.meshNsTotal += rep.meshNs
	w.stepViewers(nowTick)

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		var logged []LoggedInput
		if len(inputs) > 0 {
			logged = make([]LoggedInput, 0, len(inputs))
			for _, env := range inputs {
				m := env.Msg
				logged = append(logged, LoggedInput{
					Yaw:     m.Yaw,
					Pitch:   m.Pitch,
					Forward: m.Axes.Forward,
					Strafe:  m.Axes.Strafe,
					Up:      m.Axes.Up,
				})
			}
		}
		center := w.observerChunk()
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Center:    [3]int{center.CX, center.CY, center.CZ},
			Loaded:    len(w.loaded),
			Queued:    w.queueDepth(),
			Spawned:   rep.spawned,
			Despawned: rep.despawned,
			GenNs:     rep.genNs,
			MeshNs:    rep.meshNs,
			Inputs:    logged,
			Digest:    digest,
		})
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)

	center := w.observerChunk()
	m := WorldMetrics{
		Tick:           nextTick,
		Viewers:        len(w.viewers),
		LoadedChunks:   len(w.loaded),
		ResidentChunks: w.store.Len(),
		QueueDepth:     w.queueDepth(),
		Pos:            [3]float64{w.observer.Pos.X(), w.observer.Pos.Y(), w.observer.Pos.Z()},
		Yaw:            w.observer.Yaw,
		Pitch:          w.observer.Pitch,
		Center:         [3]int{center.CX, center.CY, center.CZ},
		SpawnedTotal:   w.spawnedTotal,
		DespawnedTotal: w.despawnedTotal,
		GenNsTotal:     w.genNsTotal,
		MeshNsTotal:    w.meshNsTotal,
		QueueDepths: QueueDepths{
			Inputs: len(w.inputs),
			Join:   len(w.viewerJoin),
			Leave:  len(w.viewerLeave),
			Voxels: len(w.voxelsReq),
		},
		StepMS: stepMS,
	}
	if w.sched != nil {
		m.EnqueuedTotal = w.sched.enqueuedTotal.Load()
		m.BuiltTotal = w.sched.builtTotal.Load()
		m.PurgedTotal = w.sched.purgedTotal.Load()
	}
	w.metrics.Store(m)
}
