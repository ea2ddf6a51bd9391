package vulkan

// Framebuffer binds one swapchain image view and the depth view to a render
// pass.
type Framebuffer struct {
	Handle      Handle
	Attachments []Handle
	RenderPass  *RenderPass
}

func NewFramebuffer(ctx *Context, renderPass *RenderPass, width, height int, attachments []Handle) (*Framebuffer, error) {
	owned := append([]Handle(nil), attachments...)

	handle, err := ctx.driver.CreateFramebuffer(renderPass.Handle, owned, width, height)
	if err != nil {
		return nil, err
	}

	return &Framebuffer{
		Handle:      handle,
		Attachments: owned,
		RenderPass:  renderPass,
	}, nil
}

func (fb *Framebuffer) Destroy(ctx *Context) {
	if !fb.Handle.IsNull() {
		ctx.driver.DestroyFramebuffer(fb.Handle)
		fb.Handle = Handle{}
	}
	fb.Attachments = nil
	fb.RenderPass = nil
}

// RegenerateFramebuffers rebuilds one framebuffer per swapchain image,
// pairing each image's color view with the shared depth view.
func (c *Context) RegenerateFramebuffers() error {
	c.destroyFramebuffers()

	s := c.Swapchain
	s.Framebuffers = make([]*Framebuffer, 0, len(s.Views))
	for _, view := range s.Views {
		attachments := []Handle{view, s.DepthAttachment.View}
		fb, err := NewFramebuffer(c, c.MainRenderPass, s.Extent.Width, s.Extent.Height, attachments)
		if err != nil {
			return err
		}
		s.Framebuffers = append(s.Framebuffers, fb)
	}
	return nil
}

func (c *Context) destroyFramebuffers() {
	if c.Swapchain == nil {
		return
	}
	for _, fb := range c.Swapchain.Framebuffers {
		fb.Destroy(c)
	}
	c.Swapchain.Framebuffers = nil
}
