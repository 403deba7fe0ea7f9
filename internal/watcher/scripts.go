package watcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"sentinela/internal/scan"
)

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = jsString(s)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// snapshotScript collects everything one scan needs in a single round trip:
// the page URL, the full body text, and the text content of each selector
// group the detector inspects.
func snapshotScript() string {
	return fmt.Sprintf(`(() => {
  const texts = (sel) => Array.from(document.querySelectorAll(sel)).map(el => el.textContent || '');
  const selectorTexts = [];
  for (const sel of %s) {
    for (const t of texts(sel)) selectorTexts.push(t);
  }
  return {
    url: window.location.href,
    fullText: document.body ? document.body.innerText : '',
    selectorTexts: selectorTexts,
    quantities: texts(%s),
    sublabels: texts(%s),
    titles: texts(%s),
    descriptions: texts(%s),
    buttons: texts(%s)
  };
})()`,
		jsStrings(scan.OrderSelectors),
		jsString(scan.QuantitySelector),
		jsString(scan.SublabelSelector),
		jsString(scan.TitleSelector),
		jsString(scan.DescriptionSelector),
		jsString(scan.ButtonSelector),
	)
}

// observerScript installs a MutationObserver that reports DOM changes through
// the named binding. Installation is idempotent per document.
func observerScript(binding string) string {
	return fmt.Sprintf(`(() => {
  if (window.__sentinelaObserver) return true;
  const obs = new MutationObserver(() => {
    try { window[%s]('mutation'); } catch (e) {}
  });
  obs.observe(document.body, { childList: true, subtree: true, characterData: true });
  window.__sentinelaObserver = obs;
  return true;
})()`, jsString(binding))
}

// highlightScript redraws the in-page highlights and the persistent banner.
// It clears previous marks first so stale highlights never linger, then
// re-applies them for the current DOM state.
func highlightScript(highlight, banner bool) string {
	return fmt.Sprintf(`(() => {
  const HIGHLIGHT = %t, BANNER = %t;

  // Pause the observer: everything below mutates the DOM and must not feed
  // back into the rescan pipeline.
  const obs = window.__sentinelaObserver;
  if (obs) obs.disconnect();

  document.querySelectorAll('.sentinela-target').forEach(el => {
    el.classList.remove('sentinela-target');
    el.style.removeProperty('background-color');
    el.style.removeProperty('box-shadow');
    el.style.removeProperty('border-radius');
    el.style.removeProperty('padding');
    el.style.removeProperty('margin');
  });
  document.querySelectorAll('.sentinela-target-text').forEach(el => {
    const parent = el.parentNode;
    if (parent) {
      while (el.firstChild) parent.insertBefore(el.firstChild, el);
      parent.removeChild(el);
    }
  });

  const mark = (el) => {
    if (!HIGHLIGHT || !el) return;
    el.classList.add('sentinela-target');
    el.style.backgroundColor = 'rgba(255, 0, 0, 0.2)';
    el.style.boxShadow = 'inset 0 0 0 2px red';
    el.style.borderRadius = '4px';
    el.style.padding = '0';
    el.style.margin = '0';
  };
  const markText = (el, text) => {
    if (!HIGHLIGHT || el.querySelector('.sentinela-target-text')) return;
    const html = el.innerHTML;
    if (!html.toLowerCase().includes(text.toLowerCase())) return;
    const re = new RegExp('(' + text + ')', 'gi');
    el.innerHTML = html.replace(re, m =>
      '<span class="sentinela-target-text" style="background-color: rgba(255, 0, 0, 0.2); border-radius: 4px;">' + m + '</span>');
  };

  const cases = [];

  document.querySelectorAll(%s).forEach(el => {
    if ((el.textContent || '').toLowerCase().includes(%s)) {
      cases.push(%s);
      mark(el);
    }
  });

  document.querySelectorAll(%s).forEach(el => {
    const text = el.textContent || '';
    if (text.toLowerCase().includes('com pedra')) {
      cases.push('com pedra');
      markText(el, 'com pedra');
    }
    const f = text.match(/Tamanho::?\s*Feminino\s*-\s*(\d+)/i);
    const m = text.match(/Tamanho::?\s*Masculino\s*-\s*(\d+)/i);
    if (f && m && parseInt(f[1]) > parseInt(m[1])) {
      cases.push('Tamanho Feminino (' + parseInt(f[1]) + ') > Masculino (' + parseInt(m[1]) + ')');
      mark(el);
    }
  });

  document.querySelectorAll(%s).forEach(el => {
    if ((el.textContent || '').includes('1 pacote')) {
      cases.push('1 pacote');
      mark(el.parentNode);
    }
  });

  document.querySelectorAll(%s).forEach(el => {
    if ((el.textContent || '').toLowerCase().includes(%s.toLowerCase())) {
      cases.push(%s);
      markText(el, %s);
    }
  });

  document.querySelectorAll(%s).forEach(el => {
    if ((el.textContent || '').trim() === %s) cases.push(%s);
  });

  const existing = document.getElementById('sentinela-persistent-notification');
  if (existing) existing.remove();
  if (BANNER && cases.length > 0) {
    const unique = [...new Set(cases)];
    const box = document.createElement('div');
    box.id = 'sentinela-persistent-notification';
    box.style.cssText = 'position: fixed; right: 20px; bottom: 50px;' +
      'background: linear-gradient(135deg, #ff0000 0%%, #8b0000 100%%); color: white;' +
      'padding: 15px; border-radius: 10px; box-shadow: 0 4px 20px rgba(0,0,0,0.3);' +
      'z-index: 999999; font-family: Arial, sans-serif; font-size: 14px; font-weight: bold;' +
      'max-width: 350px; border: 2px solid white;';
    const title = document.createElement('div');
    title.textContent = 'Atenção aos itens';
    title.style.cssText = 'font-size: 16px; margin-bottom: 8px; font-weight: bold; text-align: center;';
    const list = document.createElement('div');
    list.style.cssText = 'text-align: left; font-size: 13px;';
    list.innerHTML = unique.map(c => '• ' + c).join('<br>');
    box.appendChild(title);
    box.appendChild(list);
    document.body.appendChild(box);
  }

  if (obs) obs.observe(document.body, { childList: true, subtree: true, characterData: true });
  return cases.length;
})()`,
		highlight, banner,
		jsString(scan.QuantitySelector), jsString(strings.ToLower(scan.TriggerSubstring)), jsString(scan.CaseTwoUnits),
		jsString(scan.SublabelSelector),
		jsString(scan.TitleSelector),
		jsString(scan.DescriptionSelector), jsString(scan.CasePromoPhrase), jsString(scan.CasePromoPhrase), jsString(scan.CasePromoPhrase),
		jsString(scan.ButtonSelector), jsString(scan.CaseSeeMessages), jsString(scan.CaseSeeMessages),
	)
}

// unhighlightScript removes every mark, the banner, and the observer. Used
// when monitoring stops or the watcher detaches.
func unhighlightScript() string {
	return `(() => {
  if (window.__sentinelaObserver) {
    window.__sentinelaObserver.disconnect();
    delete window.__sentinelaObserver;
  }
  document.querySelectorAll('.sentinela-target').forEach(el => {
    el.classList.remove('sentinela-target');
    el.style.removeProperty('background-color');
    el.style.removeProperty('box-shadow');
    el.style.removeProperty('border-radius');
    el.style.removeProperty('padding');
    el.style.removeProperty('margin');
  });
  document.querySelectorAll('.sentinela-target-text').forEach(el => {
    const parent = el.parentNode;
    if (parent) {
      while (el.firstChild) parent.insertBefore(el.firstChild, el);
      parent.removeChild(el);
    }
  });
  const notif = document.getElementById('sentinela-persistent-notification');
  if (notif) notif.remove();
  return true;
})()`
}

// alertScript plays the audible alert and shows the sliding in-page toast for
// a confirmed new order. The toast dismisses itself after 20 seconds or on
// click.
func alertScript(order string, sound bool) string {
	return fmt.Sprintf(`(() => {
  const obs = window.__sentinelaObserver;
  if (obs) obs.disconnect();

  if (%t) {
    try {
      const ac = new (window.AudioContext || window.webkitAudioContext)();
      const osc = ac.createOscillator();
      const gain = ac.createGain();
      osc.connect(gain);
      gain.connect(ac.destination);
      osc.frequency.value = 880;
      gain.gain.value = 0.8;
      osc.start();
      osc.stop(ac.currentTime + 0.6);
    } catch (e) {}
  }

  const toast = document.createElement('div');
  toast.style.cssText = 'position: fixed; top: 20px; right: 20px;' +
    'background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); color: white;' +
    'padding: 15px 20px; border-radius: 10px; box-shadow: 0 4px 20px rgba(0,0,0,0.3);' +
    'z-index: 999999; font-family: Arial, sans-serif; font-size: 14px; font-weight: bold;' +
    'max-width: 300px;';
  toast.innerHTML =
    '<div style="margin-bottom: 8px;"><strong> ALERTA ! </strong></div>' +
    '<div>Detectado pedido com 2 unidades</div>' +
    '<div style="margin-top: 5px; font-size: 12px; opacity: 0.9;"></div>';
  toast.lastChild.textContent = %s;

  const dismiss = () => { if (toast.parentNode) toast.parentNode.removeChild(toast); };
  toast.addEventListener('click', dismiss);
  setTimeout(dismiss, 20000);
  document.body.appendChild(toast);

  if (obs) obs.observe(document.body, { childList: true, subtree: true, characterData: true });
  return true;
})()`, sound, jsString(order))
}
