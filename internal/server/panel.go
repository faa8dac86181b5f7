package server

// panelHTML is the single-page control panel served on "/". It only talks
// to the JSON API; everything renders client-side.
const panelHTML = `<!doctype html>
<html lang="zh-CN">
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ajiasu — 节点面板</title>
<style>
body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial;max-width:920px;margin:20px auto;padding:0 12px;color:#e5e7eb;background:#0b0f14}
button,select,input{background:#0f172a;color:#e5e7eb;border:1px solid #1f2937;border-radius:8px;padding:8px 10px}
.btn{background:#2563eb;border:none}
.card{background:#111827;border:1px solid #1f2937;border-radius:10px;padding:12px;margin:12px 0}
.table{width:100%;border-collapse:collapse}
.table th,.table td{border-bottom:1px dashed #1f2937;padding:8px;text-align:left}
.mono{font-family:ui-monospace,Consolas,Menlo,monospace}
.badge{padding:1px 6px;border:1px solid #1f2937;border-radius:999px}
small{color:#9ca3af}
.controls{display:flex;gap:8px;flex-wrap:wrap;align-items:center}
.statusbar{display:flex;gap:10px;flex-wrap:wrap;align-items:center}
.pill{padding:2px 8px;border:1px solid #1f2937;border-radius:999px;background:#0b1220}
</style>
<h2>ajiasu — 节点面板</h2>
<div class="card">
  <div class="controls">
    <button class="btn" id="btn-list">列出节点</button>
    <select id="protocol">
      <option selected>lwip</option>
      <option>tcp</option>
      <option>udp</option>
      <option>proxy</option>
    </select>
    <button class="btn" id="btn-connect" disabled>连接所选节点</button>
    <button id="btn-disconnect">断开当前连接</button>
  </div>
  <div><small>连接/断开都会先清理所有 connect 进程；所选协议写入 stdin（默认 lwip）。</small></div>
</div>
<div class="card">
  <div class="statusbar">
    <div>已选择/已连接：<span id="selLabel" class="pill">无</span></div>
    <div>外网 IP：<span id="extIp" class="pill">未知</span></div>
  </div>
</div>
<div class="card">
  <table class="table">
    <thead><tr><th style="width:60px">选</th><th>节点ID</th><th style="width:90px">状态</th><th style="width:80px">城市</th><th style="width:120px">标签</th></tr></thead>
    <tbody id="tbody"></tbody>
  </table>
  <div><small>共 <span id="count">0</span> 个</small></div>
</div>
<div class="card mono" id="out" style="white-space:pre-wrap"></div>
<script>
const $=s=>document.querySelector(s); const tbody=$('#tbody'); const out=$('#out');
let NODES=[]; let SELECTED=null; let CURRENT=null;
function setSelectedLabel(lbl){ $('#selLabel').textContent = lbl || '无'; }
function setExternalIp(ip){ $('#extIp').textContent = ip || '未知'; }
function render(nodes){ tbody.innerHTML=''; nodes.forEach(n=>{ const tr=document.createElement('tr'); const checked = (CURRENT && CURRENT.label===n.label) || (SELECTED===n.label);
  tr.innerHTML='<td><input type=radio name=pick value="'+n.label+'" '+(checked?'checked':'')+'></td>'+
  '<td class=mono>'+n.id+'</td><td>'+n.status+'</td><td>'+n.city+'</td>'+
  '<td><span class=badge>'+n.label+'</span></td>';
  tr.onclick=()=>{ tr.querySelector('input').checked=true; SELECTED=n.label; setSelectedLabel(SELECTED); $('#btn-connect').disabled=false; }; tbody.appendChild(tr); }); $('#count').textContent=nodes.length; }
async function refreshStatus(){ try{ const r=await fetch('/api/status'); const d=await r.json(); CURRENT=d.current||null; if(CURRENT&&CURRENT.label){ setSelectedLabel(CURRENT.label); } if(NODES.length){ render(NODES); } }catch(e){} }
async function fetchIp(){ try{ const r=await fetch('/api/external_ip'); const d=await r.json(); if(d.ok){ setExternalIp(d.ip); } }catch(e){} }
$('#btn-list').onclick=async()=>{ out.textContent='获取中…'; try{ const r=await fetch('/api/nodes'); const d=await r.json(); if(!d.ok){ out.textContent = '错误: '+(d.error||'ajiasu 不可用'); return;} NODES=d.nodes||[]; render(NODES); out.textContent='已获取节点列表'; }catch(e){ out.textContent='获取失败: '+e; }}
$('#btn-connect').onclick=async()=>{ if(!SELECTED) return; const protocol=$('#protocol').value; out.textContent='启动连接: '+SELECTED+' ['+protocol+']...';
  try{
    const r=await fetch('/api/connect',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify({label:SELECTED,protocol})});
    const d=await r.json(); out.textContent = JSON.stringify(d,null,2); if(d.ok){ CURRENT={label:SELECTED,protocol:protocol,pid:d.pid}; setSelectedLabel(SELECTED); }
  }catch(e){ out.textContent='连接失败: '+e; }
  refreshStatus(); fetchIp(); };
$('#btn-disconnect').onclick=async()=>{ out.textContent='正在断开…'; try{ const r=await fetch('/api/disconnect',{method:'POST'}); const d=await r.json(); out.textContent = JSON.stringify(d,null,2); CURRENT=null; }catch(e){ out.textContent='断开失败: '+e; } refreshStatus(); };
document.querySelector('#protocol').value='lwip';
refreshStatus(); fetchIp(); setInterval(()=>{ refreshStatus(); fetchIp(); }, 10000);
</script>
`
